package payload

import (
	"encoding/base64"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// Payload is file content tagged with a MIME type, ready to be encoded into
// a provider request. It is transient and never written back to disk.
type Payload struct {
	MimeType string
	Data     []byte
}

// mimeByExtension is the fixed extension table used for outbound payloads.
var mimeByExtension = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

const fallbackMimeType = "image/jpeg"

// MimeTypeForPath resolves a MIME type from the file extension. Unrecognized
// extensions fall back to image/jpeg rather than failing; the substitution
// is logged so misencoded inputs are traceable.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	log.Printf("payload.MimeTypeForPath: unknown extension %q for %s, defaulting to %s", ext, filepath.Base(path), fallbackMimeType)
	return fallbackMimeType
}

// FromBytes wraps file content in a payload, resolving the MIME type from
// the path's extension. Reading the bytes is the caller's concern so that
// artifact access stays behind the file store.
func FromBytes(path string, data []byte) *Payload {
	return &Payload{
		MimeType: MimeTypeForPath(path),
		Data:     data,
	}
}

// Base64 returns the raw base64 encoding of the payload content.
func (p *Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI returns the payload as a data URI.
func (p *Payload) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MimeType, p.Base64())
}
