package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

// CreateDeliverable stores a deliverable straight into repo, bypassing the state machine.
func CreateDeliverable(
	t *testing.T,
	repo deliverable.Repository,
	projectID, groupID, name string,
	due time.Time,
	status ...deliverable.Status,
) deliverable.Deliverable {
	st := deliverable.StatusToSubmit
	if len(status) > 0 {
		st = status[0]
	}
	now := time.Now().UTC()
	d, err := repo.CreateDeliverable(context.Background(), deliverable.Deliverable{
		ProjectID: projectID,
		GroupID:   groupID,
		Name:      name,
		DueAt:     due.UTC(),
		Status:    st,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateDeliverable() failed: %v", err)
	}
	return d
}

func NewUser(name string, roles ...string) user.User {
	uname := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	return user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     uname + "@test.cd",
		Roles:     roles,
		CreatedAt: time.Now().UTC(),
	}
}

func NewFileHandle(filename, content string) deliverable.FileHandle {
	return deliverable.FileHandle{
		Filename: filename,
		Size:     int64(len(content)),
		Content:  bytes.NewBufferString(content),
	}
}

// NotifierSpy records every notification it is given.
type NotifierSpy struct {
	mu            sync.Mutex
	notifications []deliverable.Notification
}

var _ deliverable.Notifier = (*NotifierSpy)(nil)

func (spy *NotifierSpy) Notify(_ context.Context, n deliverable.Notification) {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.notifications = append(spy.notifications, n)
}

func (spy *NotifierSpy) Notifications() []deliverable.Notification {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	return append([]deliverable.Notification(nil), spy.notifications...)
}

func (spy *NotifierSpy) Count(event deliverable.NotificationEvent) int {
	var n int
	for _, notif := range spy.Notifications() {
		if notif.Event == event {
			n++
		}
	}
	return n
}

func (spy *NotifierSpy) Reset() {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.notifications = nil
}

// FileStorageStub is a deliverable.FileStorage keeping files in memory.
// Err makes every Store fail; Delay makes Store wait (or give up when its context is done);
// Block makes Store wait until it is closed, whatever its context says.
type FileStorageStub struct {
	Err   error
	Delay time.Duration
	Block chan struct{}

	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	started chan struct{}
	stored  chan string
}

var _ deliverable.FileStorage = (*FileStorageStub)(nil)

func NewFileStorageStub() *FileStorageStub {
	return &FileStorageStub{
		objects: make(map[string][]byte),
		started: make(chan struct{}, 16),
		stored:  make(chan string, 16),
	}
}

func (fs *FileStorageStub) Store(ctx context.Context, deliverableID string, fh deliverable.FileHandle) (deliverable.SubmittedFile, error) {
	select {
	case fs.started <- struct{}{}:
	default:
	}
	if fs.Block != nil {
		<-fs.Block
	} else if fs.Delay > 0 {
		select {
		case <-time.After(fs.Delay):
		case <-ctx.Done():
			return deliverable.SubmittedFile{}, ctx.Err()
		}
	}
	if fs.Err != nil {
		return deliverable.SubmittedFile{}, fs.Err
	}

	content, err := io.ReadAll(fh.Content)
	if err != nil {
		return deliverable.SubmittedFile{}, err
	}
	ref := deliverableID + "/" + uuid.NewString() + "_" + fh.Filename

	fs.mu.Lock()
	fs.objects[ref] = content
	fs.mu.Unlock()
	select {
	case fs.stored <- ref:
	default:
	}

	return deliverable.SubmittedFile{
		Filename:   fh.Filename,
		Size:       int64(len(content)),
		MediaType:  fh.ContentType,
		StorageRef: ref,
	}, nil
}

func (fs *FileStorageStub) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	content, ok := fs.objects[ref]
	if !ok {
		return nil, errors.New("object not found: " + ref)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (fs *FileStorageStub) Remove(_ context.Context, ref string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.objects, ref)
	fs.removed = append(fs.removed, ref)
	return nil
}

// Objects returns the refs currently stored.
func (fs *FileStorageStub) Objects() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	refs := make([]string, 0, len(fs.objects))
	for ref := range fs.objects {
		refs = append(refs, ref)
	}
	return refs
}

func (fs *FileStorageStub) Removed() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.removed...)
}

// WaitStarted waits for the next call to Store.
func (fs *FileStorageStub) WaitStarted(t *testing.T, timeout time.Duration) {
	select {
	case <-fs.started:
	case <-time.After(timeout):
		t.Fatal("WaitStarted() timed out")
	}
}

// WaitStored waits for the next successful Store and returns its ref.
func (fs *FileStorageStub) WaitStored(t *testing.T, timeout time.Duration) string {
	select {
	case ref := <-fs.stored:
		return ref
	case <-time.After(timeout):
		t.Fatal("WaitStored() timed out")
		return ""
	}
}

// NopLogger is a core.Logger that drops everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
