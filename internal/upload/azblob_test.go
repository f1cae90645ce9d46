package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobService answers container creates in order from codes and
// accepts every block blob upload.
type fakeBlobService struct {
	mu             sync.Mutex
	containerCodes []string
	containerCalls int
	blobPaths      []string
	blobTypes      []string
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("restype") == "container" {
		code := "ContainerAlreadyExists"
		if f.containerCalls < len(f.containerCodes) {
			code = f.containerCodes[f.containerCalls]
		}
		f.containerCalls++
		switch code {
		case "":
			w.WriteHeader(http.StatusCreated)
		case "ContainerAlreadyExists":
			w.Header().Set("x-ms-error-code", code)
			w.WriteHeader(http.StatusConflict)
		default:
			w.Header().Set("x-ms-error-code", code)
			w.WriteHeader(http.StatusForbidden)
		}
		return
	}
	f.blobPaths = append(f.blobPaths, r.URL.Path)
	f.blobTypes = append(f.blobTypes, r.Header.Get("x-ms-blob-content-type"))
	w.WriteHeader(http.StatusCreated)
}

func newFakeAzure(t *testing.T, fake *fakeBlobService) (*AzureUploader, string) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	conn := "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=a2V5;" +
		"BlobEndpoint=" + srv.URL + "/devstoreaccount1;"
	u, err := NewAzureUploader(conn, "forms", "uploads")
	require.NoError(t, err)
	return u, srv.URL
}

func TestAzureUploader_UploadsToContentAddressedKey(t *testing.T) {
	fake := &fakeBlobService{}
	u, base := newFakeAzure(t, fake)

	d, err := u.Upload(context.Background(), File{Filename: "note.txt", ContentType: "text/plain", Data: []byte("abc")})
	require.NoError(t, err)

	require.NotNil(t, d.URL)
	link, err := url.PathUnescape(*d.URL)
	require.NoError(t, err)
	assert.Equal(t, base+"/devstoreaccount1/forms/uploads/ba7816bf8f01cfea/note.txt", link)
	assert.Equal(t, "note.txt", d.Filename)
	assert.Equal(t, "text/plain", d.ContentType)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.containerCalls, "existing container counts as ready")
	assert.Equal(t, []string{"/devstoreaccount1/forms/uploads/ba7816bf8f01cfea/note.txt"}, fake.blobPaths)
	assert.Equal(t, []string{"text/plain"}, fake.blobTypes)
}

func TestAzureUploader_ContainerCheckRetriedAfterFailure(t *testing.T) {
	fake := &fakeBlobService{containerCodes: []string{"AuthorizationFailure", ""}}
	u, _ := newFakeAzure(t, fake)
	f := File{Filename: "a.bin", Data: []byte("abc")}

	_, err := u.Upload(context.Background(), f)
	require.Error(t, err)

	_, err = u.Upload(context.Background(), f)
	require.NoError(t, err)
	_, err = u.Upload(context.Background(), f)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 2, fake.containerCalls)
	assert.Len(t, fake.blobPaths, 2)
}

func TestBlobServiceURL(t *testing.T) {
	cases := []struct {
		conn string
		want string
	}{
		{"AccountName=acct;AccountKey=k", "https://acct.blob.core.windows.net"},
		{"DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=k;EndpointSuffix=core.chinacloudapi.cn",
			"https://acct.blob.core.chinacloudapi.cn"},
		{"DefaultEndpointsProtocol=http;AccountName=acct;AccountKey=k", "http://acct.blob.core.windows.net"},
		{"AccountName=acct;AccountKey=k;BlobEndpoint=http://127.0.0.1:10000/acct;EndpointSuffix=x", "http://127.0.0.1:10000/acct"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, blobServiceURL(parseConnectionString(tc.conn)), tc.conn)
	}
}
