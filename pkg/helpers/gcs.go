package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com/"

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}
	return storage.NewClient(ctx, opts...)
}

// GCSObject names one object in a bucket.
type GCSObject struct {
	Bucket string
	Name   string
}

// URL is the public https address of the object.
func (o GCSObject) URL() string {
	return gcsPublicHost + o.Bucket + "/" + o.Name
}

func (o GCSObject) handle(client *storage.Client) *storage.ObjectHandle {
	return client.Bucket(o.Bucket).Object(o.Name)
}

// ParseGCSObject reverses URL for objects in bucket.
func ParseGCSObject(bucket, url string) (GCSObject, bool) {
	name, ok := strings.CutPrefix(url, gcsPublicHost+bucket+"/")
	if !ok || name == "" {
		return GCSObject{}, false
	}
	return GCSObject{Bucket: bucket, Name: name}, true
}

// PutObject writes r to o in a single request.
func PutObject(ctx context.Context, client *storage.Client, o GCSObject, contentType string, r io.Reader) error {
	wc := o.handle(client).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write %s: %w", o.Name, err)
	}
	return wc.Close()
}

// DeleteObject removes o; a missing object is not an error.
func DeleteObject(ctx context.Context, client *storage.Client, o GCSObject) error {
	err := o.handle(client).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
