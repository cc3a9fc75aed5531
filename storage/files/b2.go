package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core/deliverable"
)

// B2Storage stores files in a Backblaze B2 bucket.
type B2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ deliverable.FileStorage = (*B2Storage)(nil)

func NewB2Storage(ctx context.Context, keyID, appKey, bucketName string) (*B2Storage, error) {
	client, err := b2.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &B2Storage{client: client, bucket: bucket}, nil
}

func (s *B2Storage) Store(ctx context.Context, deliverableID string, fh deliverable.FileHandle) (deliverable.SubmittedFile, error) {
	ref := objectKey(deliverableID, fh.Filename)
	w := s.bucket.Object(ref).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: fh.ContentType})

	n, err := io.Copy(w, fh.Content)
	if err != nil {
		_ = w.Close()
		return deliverable.SubmittedFile{}, errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return deliverable.SubmittedFile{}, errors.Wrap(err, "closing object writer")
	}
	return deliverable.SubmittedFile{
		Filename:   fh.Filename,
		Size:       n,
		MediaType:  fh.ContentType,
		StorageRef: ref,
	}, nil
}

func (s *B2Storage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, errors.Wrap(errInvalidRef, ref)
	}
	if _, err := s.bucket.Object(ref).Attrs(ctx); err != nil {
		return nil, errors.Wrap(err, "getting object attributes")
	}
	return s.bucket.Object(ref).NewReader(ctx), nil
}

func (s *B2Storage) Remove(ctx context.Context, ref string) error {
	if !validRef(ref) {
		return errors.Wrap(errInvalidRef, ref)
	}
	if err := s.bucket.Object(ref).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

// URL is the download URL of a stored object.
func (s *B2Storage) URL(ref string) string {
	return s.bucket.Object(ref).URL()
}
