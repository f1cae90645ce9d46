package normalize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dgallion1/formflat/internal/formtree"
	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/dgallion1/formflat/internal/upload"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

const (
	fieldFilename    = "filename"
	fieldContentType = "contentType"
	fieldURL         = "url"
)

// Members that may carry a file's base64 payload, in lookup order.
var payloadFields = []string{"bytes", "content", "data"}

// fileDescriptor reports whether v is an unlabeled object with a filename,
// a content type and a string payload.
func fileDescriptor(v gjson.Result) (upload.File, string, bool) {
	if !v.IsObject() || formtree.Field(v, formtree.FieldLabel).Exists() {
		return upload.File{}, "", false
	}
	name, ct := formtree.Field(v, fieldFilename), formtree.Field(v, fieldContentType)
	if name.Type != gjson.String || ct.Type != gjson.String {
		return upload.File{}, "", false
	}
	for _, field := range payloadFields {
		if p := formtree.Field(v, field); p.Type == gjson.String {
			return upload.File{Filename: name.Str, ContentType: ct.Str}, p.Str, true
		}
	}
	return upload.File{}, "", false
}

// resolveFile uploads a file descriptor and returns its replacement. The
// second result is false when v is not a file descriptor. Upload problems
// never fail the walk; they produce the descriptor's own members with a null url.
func (n *Normalizer) resolveFile(ctx context.Context, v gjson.Result) (any, bool) {
	f, payload, ok := fileDescriptor(v)
	if !ok {
		return nil, false
	}
	backend := n.uploader.Name()
	log := n.log.With(zap.String("filename", f.Filename), zap.String("backend", backend))

	data, err := decodePayload(payload)
	if err != nil {
		log.Warn("file payload is not base64", zap.Error(err))
		n.metrics.Upload(backend, metrics.OutcomeInvalid)
		return failedDescriptor(v), true
	}
	f.Data = data

	ctx, cancel := context.WithTimeout(ctx, n.opts.UploadTimeout)
	defer cancel()
	d, err := n.uploader.Upload(ctx, f)
	switch {
	case errors.Is(err, upload.ErrNotConfigured):
		log.Debug("no upload backend configured")
		n.metrics.Upload(backend, metrics.OutcomeSkipped)
		return failedDescriptor(v), true
	case err != nil:
		log.Warn("file upload failed", zap.Error(err))
		n.metrics.Upload(backend, metrics.OutcomeFailed)
		return failedDescriptor(v), true
	}
	log.Debug("file uploaded", zap.Int("bytes", len(data)))
	n.metrics.Upload(backend, metrics.OutcomeOK)
	return d, true
}

// failedDescriptor keeps the descriptor's own members, drops any url it
// carried and appends a null url.
func failedDescriptor(v gjson.Result) *Result {
	out := NewResult()
	v.ForEach(func(key, val gjson.Result) bool {
		if key.Str != fieldURL {
			out.Set(key.Str, json.RawMessage(pretty.Ugly([]byte(val.Raw))))
		}
		return true
	})
	out.Set(fieldURL, nil)
	return out
}

// decodePayload accepts padded or unpadded standard base64 and tolerates a
// data URL prefix.
func decodePayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, rest, ok := strings.Cut(s, ","); ok {
			s = rest
		}
	}
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
