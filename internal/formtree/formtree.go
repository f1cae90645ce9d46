package formtree

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the shape a form node resolves to.
type Kind int

const (
	KindScalar      Kind = iota // string, number, bool, null
	KindList                    // JSON array
	KindRepeatGroup             // type == "Repeat" with a rows array
	KindAnswer                  // labeled value/values holder
	KindGeneric                 // any other object (pages, sections, wrappers)
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindRepeatGroup:
		return "repeat_group"
	case KindAnswer:
		return "answer"
	default:
		return "generic"
	}
}

// Member names the classifier and the walk look at.
const (
	FieldLabel   = "label"
	FieldType    = "type"
	FieldRows    = "rows"
	FieldValue   = "value"
	FieldValues  = "values"
	FieldAnswers = "answers"

	RepeatType = "Repeat"
)

// Classify resolves a node to exactly one Kind. First match wins:
// scalar, list, repeat group, answer, generic.
func Classify(n gjson.Result) Kind {
	switch {
	case n.IsArray():
		return KindList
	case !n.IsObject():
		return KindScalar
	case isRepeat(n):
		return KindRepeatGroup
	case isAnswer(n):
		return KindAnswer
	default:
		return KindGeneric
	}
}

func isRepeat(n gjson.Result) bool {
	t := Field(n, FieldType)
	return t.Type == gjson.String && t.Str == RepeatType && Field(n, FieldRows).IsArray()
}

func isAnswer(n gjson.Result) bool {
	if Field(n, FieldLabel).Type != gjson.String {
		return false
	}
	return Field(n, FieldValue).Exists() || Field(n, FieldValues).IsArray()
}

// HasRows reports whether the object carries an array-valued rows member,
// regardless of its type.
func HasRows(n gjson.Result) bool {
	return n.IsObject() && Field(n, FieldRows).IsArray()
}

// Label returns the node's label when it is a string, otherwise "".
func Label(n gjson.Result) string {
	if !n.IsObject() {
		return ""
	}
	l := Field(n, FieldLabel)
	if l.Type != gjson.String {
		return ""
	}
	return l.Str
}

// Field returns the named member of an object. When the key repeats, the
// last occurrence wins, as it does for JSON.parse.
func Field(n gjson.Result, name string) gjson.Result {
	var out gjson.Result
	if !n.IsObject() {
		return out
	}
	n.ForEach(func(key, val gjson.Result) bool {
		if key.Str == name {
			out = val
		}
		return true
	})
	return out
}

// EachMember visits an object's members once per distinct key, at the
// position of the key's first occurrence and with its last value.
func EachMember(n gjson.Result, fn func(key string, val gjson.Result) bool) {
	if !n.IsObject() {
		return
	}
	var keys []string
	vals := make(map[string]gjson.Result)
	n.ForEach(func(key, val gjson.Result) bool {
		if _, seen := vals[key.Str]; !seen {
			keys = append(keys, key.Str)
		}
		vals[key.Str] = val
		return true
	})
	for _, k := range keys {
		if !fn(k, vals[k]) {
			return
		}
	}
}

// LabelPath is the chain of ancestor labels leading to a node.
// It is treated as immutable: Append always allocates.
type LabelPath []string

// Append returns a new path with label added; p is never modified.
func (p LabelPath) Append(label string) LabelPath {
	out := make(LabelPath, len(p)+1)
	copy(out, p)
	out[len(p)] = label
	return out
}

// Parent returns every element but the last.
func (p LabelPath) Parent() LabelPath {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Join renders the fully-qualified label.
func (p LabelPath) Join(delim string) string {
	return strings.Join(p, delim)
}
