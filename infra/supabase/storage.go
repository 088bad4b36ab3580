package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
)

const storageService = "storage"

// StorageClient handles Supabase Storage operations.
type StorageClient struct {
	client *Client
}

// UploadWithToken uploads a file using a user's access token.
func (s *StorageClient) UploadWithToken(ctx context.Context, bucketID, filePath string, data []byte, opts *UploadOptions, accessToken string) (*FileObject, error) {
	urlStr := fmt.Sprintf("%s/object/%s/%s", s.client.storageURL, bucketID, url.PathEscape(filePath))

	headers := map[string]string{}
	if opts != nil {
		if opts.ContentType != "" {
			headers["Content-Type"] = opts.ContentType
		}
		if opts.CacheControl != "" {
			headers["Cache-Control"] = opts.CacheControl
		}
		if opts.Upsert {
			headers["x-upsert"] = "true"
		}
	}

	if headers["Content-Type"] == "" {
		headers["Content-Type"] = "application/octet-stream"
	}

	respBody, statusCode, err := s.client.request(ctx, storageService, http.MethodPost, urlStr, data, headers, accessToken)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	return &FileObject{
		Name:     path.Base(filePath),
		Key:      bucketID + "/" + filePath,
		BucketID: bucketID,
	}, nil
}

// GetPublicURL returns the public URL for a file in a public bucket.
func (s *StorageClient) GetPublicURL(bucketID, filePath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.client.storageURL, bucketID, url.PathEscape(filePath))
}
