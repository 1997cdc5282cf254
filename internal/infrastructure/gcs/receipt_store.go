// Package gcs stores expense receipts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

type ReceiptStore struct {
	client *storage.Client
	bucket string
}

func NewReceiptStore(client *storage.Client, bucket string) *ReceiptStore {
	return &ReceiptStore{client: client, bucket: bucket}
}

func (s *ReceiptStore) Save(ctx context.Context, groupID int64, filename, contentType string, r io.Reader) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedReceiptTypes[contentType] {
		return "", &application.Error{
			Kind:    application.ErrInvalidInput,
			Message: "unsupported receipt type",
			Fields:  map[string]string{"receipt": "must be a JPEG, PNG, WebP image or a PDF"},
		}
	}
	return helpers.UploadObject(ctx, s.client, s.bucket, ObjectPath(groupID, filename), contentType, r)
}

func (s *ReceiptStore) Delete(ctx context.Context, url string) error {
	objectPath, ok := helpers.ObjectPathFromURL(s.bucket, url)
	if !ok {
		return fmt.Errorf("receipt %q is not in bucket %s", url, s.bucket)
	}
	return helpers.DeleteObject(ctx, s.client, s.bucket, objectPath)
}

// ObjectPath places receipts under receipts/<group>/ with a random name that keeps the extension.
func ObjectPath(groupID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return filepath.ToSlash(filepath.Join("receipts", strconv.FormatInt(groupID, 10), uuid.NewString()+ext))
}

var _ application.ReceiptStore = (*ReceiptStore)(nil)
