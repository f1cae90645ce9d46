package normalize

import (
	"context"
	"encoding/json"

	"github.com/dgallion1/formflat/internal/formtree"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

// UnknownLabel keys answers that carry no usable label.
const UnknownLabel = "unknown"

// SimplifyAll reduces an answers array to one label-to-value mapping.
// Later duplicates overwrite earlier ones but keep the first position.
func (n *Normalizer) SimplifyAll(ctx context.Context, answers gjson.Result) *Answers {
	out := NewResult()
	answers.ForEach(func(i, ans gjson.Result) bool {
		if !ans.IsObject() {
			n.log.Debug("skipping non-object answer",
				zap.Int64("index", i.Int()),
				zap.String("type", ans.Type.String()))
			return true
		}
		out.Set(answerLabel(ans), n.Simplify(ctx, ans))
		return true
	})
	return out
}

// Simplify resolves one answer to a single value. Only the first entry of
// values is ever kept; null never survives.
func (n *Normalizer) Simplify(ctx context.Context, ans gjson.Result) any {
	var picked gjson.Result
	if v := formtree.Field(ans, formtree.FieldValue); v.Exists() {
		picked = v
	} else if vs := formtree.Field(ans, formtree.FieldValues); vs.IsArray() {
		first := vs.Get("0")
		if !first.Exists() {
			return ""
		}
		picked = first
		if first.IsObject() {
			if nested := formtree.Field(first, formtree.FieldValue); nested.Exists() {
				picked = nested
			}
		}
	} else {
		n.log.Debug("answer has no value", zap.String("label", answerLabel(ans)))
		return ""
	}

	if picked.IsObject() {
		if resolved, ok := n.resolveFile(ctx, picked); ok {
			return resolved
		}
	}
	return toValue(picked)
}

func answerLabel(ans gjson.Result) string {
	if l := formtree.Label(ans); l != "" {
		return l
	}
	return UnknownLabel
}

// toValue converts a gjson node to its output form. Numbers keep their
// source text and composite values keep member order.
func toValue(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.JSON:
		return json.RawMessage(pretty.Ugly([]byte(v.Raw)))
	default:
		return ""
	}
}
