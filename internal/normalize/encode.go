package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes a Transform result compactly, keeping map insertion
// order and leaving "<", ">" and "&" unescaped so joined labels read as
// they were written.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	e := &encoder{buf: &buf}
	e.enc = json.NewEncoder(&e.scratch)
	e.enc.SetEscapeHTML(false)
	if err := e.value(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	buf     *bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
}

func (e *encoder) value(v any) error {
	switch t := v.(type) {
	case *Result:
		if t == nil {
			e.buf.WriteString("null")
			return nil
		}
		e.buf.WriteByte('{')
		first := true
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				e.buf.WriteByte(',')
			}
			first = false
			if err := e.scalar(pair.Key); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.value(pair.Value); err != nil {
				return fmt.Errorf("key %q: %w", pair.Key, err)
			}
		}
		e.buf.WriteByte('}')
		return nil
	case []*Result:
		e.buf.WriteByte('[')
		for i, r := range t {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.value(r); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
		return nil
	case json.RawMessage:
		if len(t) == 0 {
			e.buf.WriteString("null")
			return nil
		}
		e.buf.Write(t)
		return nil
	case nil:
		e.buf.WriteString("null")
		return nil
	default:
		return e.scalar(v)
	}
}

func (e *encoder) scalar(v any) error {
	e.scratch.Reset()
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	e.buf.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte{'\n'}))
	return nil
}
