package normalize

import (
	"context"
	"fmt"

	"github.com/dgallion1/formflat/internal/formtree"
	"github.com/tidwall/gjson"
)

// accumulate walks node depth-first, merging simplified answers and
// expanded repeat rows into result under the bucket for path.
func (n *Normalizer) accumulate(ctx context.Context, node gjson.Result, path formtree.LabelPath, result *Result, depth int) error {
	if depth > n.opts.MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrDepthExceeded, n.opts.MaxDepth)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	kind := formtree.Classify(node)
	switch kind {
	case formtree.KindScalar:
		return nil
	case formtree.KindList:
		return each(node, func(_, item gjson.Result) error {
			return n.accumulate(ctx, item, path, result, depth+1)
		})
	}

	if label := formtree.Label(node); label != "" {
		path = path.Append(label)
	}

	if answers := formtree.Field(node, formtree.FieldAnswers); answers.IsArray() {
		appendAnswers(bucket(result, path, n.opts.Delimiter), n.SimplifyAll(ctx, answers))
	}

	if kind == formtree.KindRepeatGroup || (n.opts.LenientRows && formtree.HasRows(node)) {
		rows, err := n.expandRows(ctx, formtree.Field(node, formtree.FieldRows), depth+1)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			appendRows(bucket(result, path, n.opts.Delimiter), rows)
		}
		return nil
	}

	var err error
	formtree.EachMember(node, func(key string, val gjson.Result) bool {
		if key == formtree.FieldRows || !(val.IsObject() || val.IsArray()) {
			return true
		}
		err = n.accumulate(ctx, val, path, result, depth+1)
		return err == nil
	})
	return err
}

// expandRows normalizes every row as a standalone document, in order.
func (n *Normalizer) expandRows(ctx context.Context, rows gjson.Result, depth int) ([]*Result, error) {
	var out []*Result
	err := each(rows, func(_, row gjson.Result) error {
		res := NewResult()
		if err := n.accumulate(ctx, row, nil, res, depth+1); err != nil {
			return err
		}
		out = append(out, res)
		return nil
	})
	return out, err
}

// each is ForEach with an error that stops iteration.
func each(node gjson.Result, fn func(key, val gjson.Result) error) error {
	var err error
	node.ForEach(func(key, val gjson.Result) bool {
		err = fn(key, val)
		return err == nil
	})
	return err
}
