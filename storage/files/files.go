package filestore

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

var errInvalidRef = errors.New("invalid storage reference")

// New returns the FileStorage selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (deliverable.FileStorage, error) {
	switch conf.Storage.Backend {
	case "", "local":
		return NewLocalStorage(conf.Storage.UploadDir)
	case "b2":
		return NewB2Storage(ctx, conf.Storage.B2KeyID, conf.Storage.B2AppKey, conf.Storage.B2Bucket)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}

// objectKey names an object `<deliverable id>/<uuid>-<file name>`: one submission never overwrites another.
func objectKey(deliverableID, filename string) string {
	return path.Join(deliverableID, uuid.NewString()+"-"+path.Base(filename))
}

func validRef(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "/") && !strings.Contains(ref, "..")
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
