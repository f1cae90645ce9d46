package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gosimple/slug"
)

var (
	// ErrNotConfigured is returned by the disabled backend.
	ErrNotConfigured = errors.New("file upload is not configured")

	// ErrRejected means the remote side answered but did not store the file.
	ErrRejected = errors.New("upload rejected")
)

// File is a decoded file answer ready to be stored.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Descriptor is what replaces a file answer once it is stored.
// A nil URL marks a failed upload.
type Descriptor struct {
	Filename    string  `json:"filename"`
	ContentType string  `json:"contentType"`
	URL         *string `json:"url"`
}

// Uploader stores a file and returns where it can be fetched.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, f File) (Descriptor, error)
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Upload(context.Context, File) (Descriptor, error) {
	return Descriptor{}, ErrNotConfigured
}

// ObjectKey derives a content-addressed object name, so the same file always
// lands on the same key: <prefix>/<sha256[:16]>/<slugged-name><ext>.
func ObjectKey(prefix string, f File) string {
	sum := sha256.Sum256(f.Data)
	base := filepath.Base(f.Filename)
	if base == "." || base == "/" {
		base = ""
	}
	ext := strings.ToLower(filepath.Ext(base))
	name := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "file"
	}
	return path.Join(strings.Trim(prefix, "/"), hex.EncodeToString(sum[:8]), name+ext)
}

// DetectContentType keeps a specific declared type and sniffs the payload
// when the declared one is empty or generic.
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if mt := http.DetectContentType(data); mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(data).String()
}

func stored(f File, contentType, url string) Descriptor {
	return Descriptor{Filename: f.Filename, ContentType: contentType, URL: &url}
}
