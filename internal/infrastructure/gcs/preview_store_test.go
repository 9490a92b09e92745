package gcs

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

func TestPreviewStore_ObjectNaming(t *testing.T) {
	s := NewPreviewStore(nil, "ids", "", nil)

	obj := s.object(entity.Artifact{ID: "a1", FileName: "Scan.PNG"})
	assert.Equal(t, helpers.GCSObject{Bucket: "ids", Name: "verification-previews/a1.png"}, obj)

	s = NewPreviewStore(nil, "ids", "tmp/previews", nil)
	assert.Equal(t, "tmp/previews/a2", s.object(entity.Artifact{ID: "a2", FileName: "noext"}).Name)
}

func TestPreviewStore_RequiresConfiguration(t *testing.T) {
	s := NewPreviewStore(nil, "ids", "", nil)

	_, err := s.Create(context.Background(), entity.Artifact{ID: "a1"}, strings.NewReader("x"))
	assert.EqualError(t, err, "gcs not configured")
	assert.EqualError(t, s.Release(context.Background(), "https://storage.googleapis.com/ids/x.png"), "gcs not configured")
}

func TestPreviewStore_ReleaseRejectsForeignRef(t *testing.T) {
	s := NewPreviewStore(&storage.Client{}, "ids", "", nil)

	for _, ref := range []entity.PreviewRef{
		"https://storage.googleapis.com/other/verification-previews/a1.png",
		"mem:1234",
		"https://storage.googleapis.com/ids/",
	} {
		err := s.Release(context.Background(), ref)
		require.Error(t, err, ref)
		assert.Contains(t, err.Error(), "preview is not in bucket ids")
	}
}
