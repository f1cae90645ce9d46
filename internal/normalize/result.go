package normalize

import (
	"github.com/dgallion1/formflat/internal/formtree"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reserved bucket members.
const (
	AnswersKey = "_answers"
	RowsKey    = "_rows"
)

// Result is a normalized document: label-keyed buckets in first-insertion order.
type Result = orderedmap.OrderedMap[string, any]

// Answers is one simplified answers list, leaf label to resolved value.
type Answers = orderedmap.OrderedMap[string, any]

func NewResult() *Result {
	return orderedmap.New[string, any]()
}

// bucket returns the bucket for path, creating it and any ancestor maps.
// Ancestors are keyed by plain labels; the bucket itself by the joined path.
func bucket(result *Result, path formtree.LabelPath, delim string) *Result {
	curr := result
	for _, label := range path.Parent() {
		curr = child(curr, label)
	}
	return child(curr, path.Join(delim))
}

// child returns m[key] as a map, creating it when absent. A key that already
// holds something else is left alone and a detached map is returned.
func child(m *Result, key string) *Result {
	if v, ok := m.Get(key); ok {
		if c, ok := v.(*Result); ok {
			return c
		}
		return NewResult()
	}
	c := NewResult()
	m.Set(key, c)
	return c
}

func appendAnswers(b *Result, a *Answers) {
	list, _ := b.Get(AnswersKey)
	answers, _ := list.([]*Answers)
	b.Set(AnswersKey, append(answers, a))
}

func appendRows(b *Result, rows []*Result) {
	list, _ := b.Get(RowsKey)
	existing, _ := list.([]*Result)
	b.Set(RowsKey, append(existing, rows...))
}
