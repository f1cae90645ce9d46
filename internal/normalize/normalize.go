// Package normalize flattens form-submission documents into label-keyed
// buckets of answers and repeat rows.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/dgallion1/formflat/internal/upload"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	// ErrInvalidJSON means the body could not be parsed at all.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrDepthExceeded means the document nests deeper than Options.MaxDepth.
	ErrDepthExceeded = errors.New("document nesting too deep")
)

const (
	DefaultDelimiter = " > "
	DefaultMaxDepth  = 512
)

type Options struct {
	Delimiter string
	MaxDepth  int

	// LenientRows expands any array-valued rows member, not only those
	// on nodes typed "Repeat".
	LenientRows bool

	UploadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 30 * time.Second
	}
	return o
}

// Normalizer walks documents. It holds no per-request state and is safe
// for concurrent use.
type Normalizer struct {
	opts     Options
	uploader upload.Uploader
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(opts Options, uploader upload.Uploader, m *metrics.Metrics, log *zap.Logger) *Normalizer {
	if uploader == nil {
		uploader = upload.Disabled{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{
		opts:     opts.withDefaults(),
		uploader: uploader,
		metrics:  m,
		log:      log,
	}
}

// Transform normalizes a raw request body. An array body yields one
// *Result per element in order; anything else yields a single *Result.
func (n *Normalizer) Transform(ctx context.Context, body []byte) (any, error) {
	if depth := nestingDepth(body); depth > n.opts.MaxDepth {
		return nil, fmt.Errorf("%w: %d levels (max %d)", ErrDepthExceeded, depth, n.opts.MaxDepth)
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrInvalidJSON)
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		res, err := n.Document(ctx, doc)
		if err != nil {
			return nil, err
		}
		n.metrics.AddDocuments(1)
		return res, nil
	}

	results := make([]*Result, 0)
	err := each(doc, func(_, item gjson.Result) error {
		res, err := n.Document(ctx, item)
		if err != nil {
			return fmt.Errorf("document %d: %w", len(results), err)
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.AddDocuments(len(results))
	return results, nil
}

// Document normalizes one document with a fresh path and result.
func (n *Normalizer) Document(ctx context.Context, doc gjson.Result) (*Result, error) {
	result := NewResult()
	if err := n.accumulate(ctx, doc, nil, result, 0); err != nil {
		return nil, err
	}
	return result, nil
}

// nestingDepth returns the deepest bracket nesting in raw JSON without
// recursing, so hostile input cannot exhaust the stack before it is rejected.
func nestingDepth(data []byte) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for _, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > deepest {
				deepest = depth
			}
		case '}', ']':
			depth--
		}
	}
	return deepest
}
