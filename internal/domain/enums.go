package domain

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedContentTypes maps MIME content types to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// IsImage reports whether the file type is a raster image.
func (t FileType) IsImage() bool {
	return t == FileTypeJPG || t == FileTypePNG
}

// BackendName identifies one of the extraction backend variants.
type BackendName string

const (
	BackendInlinePDF   BackendName = "inline-pdf"
	BackendFilesAPIPDF BackendName = "files-api-pdf"
	BackendMultiImage  BackendName = "multi-image"
)

// KnownBackends is the closed set of selectable backends.
var KnownBackends = map[BackendName]bool{
	BackendInlinePDF:   true,
	BackendFilesAPIPDF: true,
	BackendMultiImage:  true,
}

// ModelTier is the escalation level within a single backend call.
type ModelTier string

const (
	TierPrimary  ModelTier = "primary"
	TierFallback ModelTier = "fallback"
)
