package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"certos/internal/domain"
)

func TestFileType_IsImage(t *testing.T) {
	assert.True(t, domain.FileTypeJPG.IsImage())
	assert.True(t, domain.FileTypePNG.IsImage())
	assert.False(t, domain.FileTypePDF.IsImage())
}

func TestAllowedExtensions_ConsistentWithContentTypes(t *testing.T) {
	// Every extension must resolve to a file type that is also reachable
	// through some content type, so neither lookup admits more than the other.
	byType := make(map[domain.FileType]bool)
	for _, ft := range domain.AllowedContentTypes {
		byType[ft] = true
	}
	for ext, ft := range domain.AllowedExtensions {
		assert.True(t, byType[ft], "extension %q maps to unreachable type %q", ext, ft)
	}
}
