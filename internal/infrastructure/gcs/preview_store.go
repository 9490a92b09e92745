// Package gcs stores verification previews in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

// PreviewStore uploads each preview as its own object and deletes it on release.
type PreviewStore struct {
	Client *storage.Client
	Bucket string
	Prefix string
	Logger *logrus.Logger
}

func NewPreviewStore(client *storage.Client, bucket, prefix string, logger *logrus.Logger) *PreviewStore {
	if prefix == "" {
		prefix = "verification-previews"
	}
	return &PreviewStore{Client: client, Bucket: bucket, Prefix: prefix, Logger: logger}
}

func (s *PreviewStore) object(a entity.Artifact) helpers.GCSObject {
	ext := strings.ToLower(filepath.Ext(a.FileName))
	return helpers.GCSObject{Bucket: s.Bucket, Name: path.Join(s.Prefix, a.ID+ext)}
}

func (s *PreviewStore) Create(ctx context.Context, a entity.Artifact, content io.Reader) (entity.PreviewRef, error) {
	if s.Client == nil || s.Bucket == "" {
		return "", errors.New("gcs not configured")
	}
	if content == nil {
		content = strings.NewReader("")
	}
	obj := s.object(a)
	if err := helpers.PutObject(ctx, s.Client, obj, a.ContentType, content); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("artifact_id", a.ID).Error("upload preview failed")
		}
		return "", err
	}
	return entity.PreviewRef(obj.URL()), nil
}

func (s *PreviewStore) Release(ctx context.Context, ref entity.PreviewRef) error {
	if s.Client == nil || s.Bucket == "" {
		return errors.New("gcs not configured")
	}
	obj, ok := helpers.ParseGCSObject(s.Bucket, string(ref))
	if !ok {
		return errors.New("preview is not in bucket " + s.Bucket)
	}
	return helpers.DeleteObject(ctx, s.Client, obj)
}
