// Package filestore uploads receipts and attachments and hands back their
// public address.
package filestore

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// DefaultBucket is the public bucket receipts are stored in.
const DefaultBucket = "files"

// Store uploads files to one bucket.
type Store struct {
	blob   backend.Blob
	bucket string
	now    func() time.Time
	log    *logger.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a store over bucket, or DefaultBucket when bucket is empty.
func New(blob backend.Blob, bucket string, opts ...Option) *Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	s := &Store{
		blob:   blob,
		bucket: bucket,
		now:    time.Now,
		log:    logger.NewDefault("filestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the target bucket.
func (s *Store) Bucket() string { return s.bucket }

// Upload stores data under a timestamped, whitespace-free version of
// fileName and returns its public URL. An empty contentType is inferred from
// the extension, then from the content.
func (s *Store) Upload(ctx context.Context, fileName string, data []byte, contentType string) (string, error) {
	if !validFileName(fileName) {
		return "", &domain.ValidationError{Field: "file_name", Reason: "file name is required"}
	}
	name := ObjectName(s.now(), fileName)
	if contentType == "" {
		contentType = detectContentType(fileName, data)
	}

	if err := s.blob.Put(ctx, s.bucket, name, data, contentType); err != nil {
		s.log.WithError(err).WithField("object", name).Warn("upload failed")
		return "", &domain.StorageError{Bucket: s.bucket, Name: name, Err: err}
	}

	s.log.WithField("object", name).WithField("size", len(data)).Info("file uploaded")
	return s.blob.PublicURL(s.bucket, name), nil
}

// ObjectName prefixes fileName with the Unix time in milliseconds and
// replaces every whitespace character with an underscore.
func ObjectName(at time.Time, fileName string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, filepath.Base(fileName))
	return fmt.Sprintf("%d_%s", at.UnixMilli(), clean)
}

// validFileName rejects names with nothing left once directories and
// whitespace are stripped.
func validFileName(fileName string) bool {
	base := filepath.Base(strings.TrimSpace(fileName))
	return base != "." && base != string(filepath.Separator)
}

func detectContentType(fileName string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
