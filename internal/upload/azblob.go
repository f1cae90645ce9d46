package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureUploader stores files as block blobs using a shared-key connection string.
type AzureUploader struct {
	client    *azblob.Client
	container string
	prefix    string

	mu            sync.Mutex
	containerInit bool
}

func NewAzureUploader(connectionString, container, prefix string) (*AzureUploader, error) {
	if container == "" {
		return nil, fmt.Errorf("container name is required")
	}
	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	serviceURL := blobServiceURL(params)

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	// Azurite and other local emulators speak plain HTTP.
	var opts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		opts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, opts)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &AzureUploader{client: client, container: container, prefix: prefix}, nil
}

func (u *AzureUploader) Name() string { return "azblob" }

func (u *AzureUploader) Upload(ctx context.Context, f File) (Descriptor, error) {
	if err := u.ensureContainer(ctx); err != nil {
		return Descriptor{}, err
	}
	key := ObjectKey(u.prefix, f)
	contentType := DetectContentType(f.ContentType, f.Data)

	blobClient := u.client.ServiceClient().NewContainerClient(u.container).NewBlockBlobClient(key)
	_, err := blobClient.UploadBuffer(ctx, f.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
		Metadata:    map[string]*string{"filename": to.Ptr(f.Filename)},
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("blob upload %s: %w", key, err)
	}
	return stored(f, contentType, blobClient.URL()), nil
}

func (u *AzureUploader) ensureContainer(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.containerInit {
		return nil
	}
	_, err := u.client.CreateContainer(ctx, u.container, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "ContainerAlreadyExists" {
			return fmt.Errorf("ensure container: %w", err)
		}
	}
	u.containerInit = true
	return nil
}

// blobServiceURL prefers an explicit BlobEndpoint and otherwise builds the
// account URL from DefaultEndpointsProtocol and EndpointSuffix.
func blobServiceURL(params map[string]string) string {
	if ep := params["BlobEndpoint"]; ep != "" {
		return ep
	}
	protocol := params["DefaultEndpointsProtocol"]
	if protocol == "" {
		protocol = "https"
	}
	suffix := params["EndpointSuffix"]
	if suffix == "" {
		suffix = "core.windows.net"
	}
	return fmt.Sprintf("%s://%s.blob.%s", protocol, params["AccountName"], suffix)
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}
