package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dgallion1/formflat/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func parse(raw string) gjson.Result { return gjson.Parse(raw) }

func TestSimplify_Resolution(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{"string value", `{"label":"a","value":"x"}`, "x"},
		{"null value", `{"label":"a","value":null}`, ""},
		{"zero", `{"label":"a","value":0}`, json.Number("0")},
		{"false", `{"label":"a","value":false}`, false},
		{"value wins over values", `{"label":"a","value":"x","values":["y"]}`, "x"},
		{"first of values", `{"label":"a","values":["a","b"]}`, "a"},
		{"nested value", `{"label":"a","values":[{"value":"x"},{"value":"y"}]}`, "x"},
		{"nested null", `{"label":"a","values":[{"value":null}]}`, ""},
		{"object without value kept", `{"label":"a","values":[{"id": 1}]}`, json.RawMessage(`{"id":1}`)},
		{"null first element", `{"label":"a","values":[null,"b"]}`, ""},
		{"empty values", `{"label":"a","values":[]}`, ""},
		{"nothing usable", `{"label":"a"}`, ""},
		{"object value", `{"label":"a","value":{"k":[1, 2]}}`, json.RawMessage(`{"k":[1,2]}`)},
	}
	n := newTestNormalizer(Options{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Simplify(context.Background(), parse(tc.raw)))
		})
	}
}

func marshalAnswers(t *testing.T, a *Answers) string {
	t.Helper()
	b, err := Marshal(a)
	require.NoError(t, err)
	return string(b)
}

func TestSimplifyAll_LastWriteWinsKeepsFirstPosition(t *testing.T) {
	n := newTestNormalizer(Options{})
	got := n.SimplifyAll(context.Background(),
		parse(`[{"label":"A","value":1},{"label":"B","value":2},{"label":"A","value":3}]`))
	assert.Equal(t, `{"A":3,"B":2}`, marshalAnswers(t, got))
}

func TestSimplifyAll_UnknownLabel(t *testing.T) {
	n := newTestNormalizer(Options{})
	got := n.SimplifyAll(context.Background(),
		parse(`[{"value":"x"},{"label":"","value":"y"},{"label":3,"value":"z"}]`))
	assert.Equal(t, `{"unknown":"z"}`, marshalAnswers(t, got))
}

func TestSimplifyAll_SkipsNonObjects(t *testing.T) {
	n := newTestNormalizer(Options{})
	got := n.SimplifyAll(context.Background(), parse(`["x",null,7,{"label":"A","value":1}]`))
	assert.Equal(t, `{"A":1}`, marshalAnswers(t, got))
}

type fakeUploader struct {
	files []upload.File
	err   error
}

func (f *fakeUploader) Name() string { return "fake" }

func (f *fakeUploader) Upload(_ context.Context, file upload.File) (upload.Descriptor, error) {
	f.files = append(f.files, file)
	if f.err != nil {
		return upload.Descriptor{}, f.err
	}
	url := "https://cdn.example.com/" + file.Filename
	return upload.Descriptor{Filename: file.Filename, ContentType: file.ContentType, URL: &url}, nil
}

const photoAnswers = `[{"label":"Photo","value":{"filename":"a.png","contentType":"image/png","bytes":"aGk="}}]`

func TestSimplify_UploadsFileDescriptor(t *testing.T) {
	up := &fakeUploader{}
	n := New(Options{}, up, nil, nil)

	got := n.SimplifyAll(context.Background(), parse(photoAnswers))

	assert.Equal(t, `{"Photo":{"filename":"a.png","contentType":"image/png","url":"https://cdn.example.com/a.png"}}`,
		marshalAnswers(t, got))
	require.Len(t, up.files, 1)
	assert.Equal(t, []byte("hi"), up.files[0].Data)
	assert.Equal(t, "image/png", up.files[0].ContentType)
}

func TestSimplify_UploadFailureKeepsDescriptor(t *testing.T) {
	n := New(Options{}, &fakeUploader{err: errors.New("boom")}, nil, nil)
	got := n.SimplifyAll(context.Background(), parse(photoAnswers))
	assert.Equal(t, `{"Photo":{"filename":"a.png","contentType":"image/png","bytes":"aGk=","url":null}}`,
		marshalAnswers(t, got))
}

func TestSimplify_NoUploaderKeepsDescriptor(t *testing.T) {
	got := newTestNormalizer(Options{}).SimplifyAll(context.Background(), parse(photoAnswers))
	assert.Equal(t, `{"Photo":{"filename":"a.png","contentType":"image/png","bytes":"aGk=","url":null}}`,
		marshalAnswers(t, got))
}

func TestSimplify_StaleURLReplacedWithNull(t *testing.T) {
	in := `[{"label":"F","value":{"url":"old","filename":"a.txt","contentType":"text/plain","content":"aGk"}}]`
	got := newTestNormalizer(Options{}).SimplifyAll(context.Background(), parse(in))
	assert.Equal(t, `{"F":{"filename":"a.txt","contentType":"text/plain","content":"aGk","url":null}}`,
		marshalAnswers(t, got))
}

func TestSimplify_BadBase64NotUploaded(t *testing.T) {
	up := &fakeUploader{}
	n := New(Options{}, up, nil, nil)
	in := `[{"label":"F","values":[{"filename":"a.txt","contentType":"text/plain","data":"!!!"}]}]`

	got := n.SimplifyAll(context.Background(), parse(in))

	assert.Empty(t, up.files)
	assert.Equal(t, `{"F":{"filename":"a.txt","contentType":"text/plain","data":"!!!","url":null}}`,
		marshalAnswers(t, got))
}

func TestFileDescriptor_Shape(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"filename":"a","contentType":"b","bytes":""}`, true},
		{`{"filename":"a","contentType":"b","data":"aGk="}`, true},
		{`{"filename":"a","contentType":"b"}`, false},
		{`{"filename":"a","contentType":"b","bytes":[1,2]}`, false},
		{`{"label":"x","filename":"a","contentType":"b","bytes":""}`, false},
		{`{"filename":1,"contentType":"b","bytes":""}`, false},
	}
	for _, tc := range cases {
		_, _, ok := fileDescriptor(parse(tc.raw))
		assert.Equal(t, tc.want, ok, tc.raw)
	}
}

func TestDecodePayload(t *testing.T) {
	for _, in := range []string{"aGk=", "aGk", "data:text/plain;base64,aGk="} {
		got, err := decodePayload(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte("hi"), got)
	}
	_, err := decodePayload("*")
	assert.Error(t, err)
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	r := NewResult()
	r.Set("A > B", "<x & y>")
	b, err := Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"A > B":"<x & y>"}`, string(b))
}
