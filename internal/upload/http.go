package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPUploader posts files to an external upload service.
type HTTPUploader struct {
	url    string
	client *resty.Client
}

func NewHTTPUploader(url string, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		url: url,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// uploadRequest is the body for POST {url}; Bytes is sent base64 encoded.
type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Bytes       []byte `json:"bytes"`
}

// uploadResponse is the service reply; a null url means the file was not stored.
type uploadResponse struct {
	Filename    string  `json:"filename"`
	ContentType string  `json:"contentType"`
	URL         *string `json:"url"`
}

func (u *HTTPUploader) Name() string { return "http" }

func (u *HTTPUploader) Upload(ctx context.Context, f File) (Descriptor, error) {
	contentType := DetectContentType(f.ContentType, f.Data)
	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(uploadRequest{Filename: f.Filename, ContentType: contentType, Bytes: f.Data}).
		Post(u.url)
	if err != nil {
		return Descriptor{}, fmt.Errorf("post upload: %w", err)
	}
	if !resp.IsSuccess() {
		return Descriptor{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out uploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Descriptor{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == nil || *out.URL == "" {
		return Descriptor{}, fmt.Errorf("%w: no url returned for %s", ErrRejected, f.Filename)
	}

	d := Descriptor{Filename: out.Filename, ContentType: out.ContentType, URL: out.URL}
	if d.Filename == "" {
		d.Filename = f.Filename
	}
	if d.ContentType == "" {
		d.ContentType = contentType
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
