package deliverable

import (
	"context"
	"io"
	"mime"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/scolab/backend/core"
)

// FileHandle is the file being submitted. Content is streamed to the FileStorage as is.
type FileHandle struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

// Submitter is the identity submitting a deliverable, along with the groups it belongs to.
type Submitter struct {
	UserID   string
	GroupIDs []string
}

func (s Submitter) IsMemberOf(groupID string) bool {
	return slices.Contains(s.GroupIDs, groupID)
}

// Evaluator is the identity correcting, grading or rejecting a deliverable.
// Admins may evaluate any deliverable; anyone else must be the teacher of its project.
type Evaluator struct {
	UserID string
	Admin  bool
}

// FileStorage transfers submitted files. It owns the storage references it returns.
type FileStorage interface {
	Store(ctx context.Context, deliverableID string, fh FileHandle) (SubmittedFile, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Remove(ctx context.Context, ref string) error
}

func (fh *FileHandle) validate() error {
	fh.Filename = path.Base(strings.ReplaceAll(core.CleanString(fh.Filename), "\\", "/"))
	var flds []core.FieldError
	if fh.Filename == "" || fh.Filename == "." || fh.Filename == "/" {
		flds = append(flds, core.FieldError{Field: "file", Error: "a file name is required"})
	}
	if fh.Content == nil || fh.Size <= 0 {
		flds = append(flds, core.FieldError{Field: "file", Error: "the file is empty"})
	}
	if flds != nil {
		return core.NewValidationError(errInvalidFile, flds...)
	}
	if fh.ContentType == "" {
		fh.ContentType = mime.TypeByExtension(strings.ToLower(path.Ext(fh.Filename)))
	}
	if fh.ContentType == "" {
		fh.ContentType = "application/octet-stream"
	}
	return nil
}

type transferResult struct {
	file SubmittedFile
	err  error
}

// transfer stores the file under a timeout. It holds no lock on the deliverable.
// Whatever the storage completes after the deadline (or a cancellation) is removed.
func (svc *Service) transfer(ctx context.Context, deliverableID string, fh FileHandle) (SubmittedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.transferTimeout)
	defer cancel()

	done := make(chan transferResult, 1)
	go func() {
		file, err := svc.files.Store(ctx, deliverableID, fh)
		done <- transferResult{file: file, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return SubmittedFile{}, &TransferError{Err: res.err}
		}
		if err := ctx.Err(); err != nil {
			svc.removeFile(res.file.StorageRef)
			return SubmittedFile{}, &TransferError{Err: err}
		}
		file := res.file
		file.Kind = KindFromFilename(file.Filename)
		if file.MediaType == "" {
			file.MediaType = fh.ContentType
		}
		if file.UploadedAt.IsZero() {
			file.UploadedAt = svc.policy.Now().UTC()
		}
		return file, nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				svc.removeFile(res.file.StorageRef)
			}
		}()
		return SubmittedFile{}, &TransferError{Err: ctx.Err()}
	}
}

// removeFile deletes an object that ended up attached to nothing.
func (svc *Service) removeFile(ref string) {
	if ref == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := svc.files.Remove(ctx, ref); err != nil {
		svc.logger.Error("removing orphaned file "+ref, err)
	}
}

const cleanupTimeout = 30 * time.Second
