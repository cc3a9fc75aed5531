package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/scolab/backend/core/deliverable"
)

// LocalStorage stores files on disk, under its root directory.
type LocalStorage struct {
	root string
}

var _ deliverable.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, errors.New("an upload directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) Store(ctx context.Context, deliverableID string, fh deliverable.FileHandle) (_ deliverable.SubmittedFile, err error) {
	ref := objectKey(deliverableID, fh.Filename)
	fp := filepath.Join(s.root, filepath.FromSlash(ref))
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return deliverable.SubmittedFile{}, errors.Wrap(err, "creating deliverable directory")
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return deliverable.SubmittedFile{}, errors.Wrap(err, "creating file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing file")
		}
		if err != nil {
			_ = os.Remove(fp)
		}
	}()

	n, err := io.Copy(f, ctxReader{ctx: ctx, r: fh.Content})
	if err != nil {
		return deliverable.SubmittedFile{}, errors.Wrap(err, "writing file")
	}
	return deliverable.SubmittedFile{
		Filename:   fh.Filename,
		Size:       n,
		MediaType:  fh.ContentType,
		StorageRef: ref,
	}, nil
}

func (s *LocalStorage) Remove(_ context.Context, ref string) error {
	if !validRef(ref) {
		return errors.Wrap(errInvalidRef, ref)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// Open returns the content of a stored file.
func (s *LocalStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, errors.Wrap(errInvalidRef, ref)
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}
