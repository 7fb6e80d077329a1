package tests

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/repository"
)

const (
	OpenMethod    = "open"
	UploadMethod  = "upload"
	CloseMethod   = "close"
	ReleaseMethod = "release"
	DropMethod    = "drop"
)

type Call struct {
	Method    string
	SessionId string
	Path      string
	// Cancelled records whether the context of the call was already done.
	Cancelled bool
}

// MockClient is an in-memory repository.Client that accepts everything unless told otherwise.
type MockClient struct {
	// UploadFailures maps a remote path to the errors returned by its successive upload attempts.
	UploadFailures map[string][]error
	OpenErr        error
	CloseErr       error
	ReleaseErr     error
	DropErr        error
	// BeforeUpload, when set, runs before every upload and may fail it.
	BeforeUpload func(ctx context.Context, path string) error
	UploadDelay  time.Duration

	mu       sync.Mutex
	calls    []Call
	uploaded map[string]map[string][]byte
}

var _ repository.Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{UploadFailures: map[string][]error{}, uploaded: map[string]map[string][]byte{}}
}

func (mc *MockClient) Open(ctx context.Context, _ *entities.ArtifactDescriptor) (string, error) {
	mc.record(ctx, OpenMethod, "", "")
	if mc.OpenErr != nil {
		return "", mc.OpenErr
	}
	sessionId := uuid.NewString()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.uploaded[sessionId] = map[string][]byte{}
	return sessionId, nil
}

func (mc *MockClient) Upload(ctx context.Context, sessionId, remotePath string, content io.Reader, _ int64) error {
	mc.record(ctx, UploadMethod, sessionId, remotePath)
	if mc.BeforeUpload != nil {
		if err := mc.BeforeUpload(ctx, remotePath); err != nil {
			return err
		}
	}
	if mc.UploadDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(mc.UploadDelay):
		}
	}
	if err := mc.nextUploadFailure(remotePath); err != nil {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.uploaded[sessionId] == nil {
		mc.uploaded[sessionId] = map[string][]byte{}
	}
	mc.uploaded[sessionId][remotePath] = data
	return nil
}

func (mc *MockClient) Close(ctx context.Context, sessionId string) error {
	mc.record(ctx, CloseMethod, sessionId, "")
	return mc.CloseErr
}

func (mc *MockClient) Release(ctx context.Context, sessionId string) error {
	mc.record(ctx, ReleaseMethod, sessionId, "")
	return mc.ReleaseErr
}

func (mc *MockClient) Drop(ctx context.Context, sessionId string) error {
	mc.record(ctx, DropMethod, sessionId, "")
	if mc.DropErr != nil {
		return mc.DropErr
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.uploaded, sessionId)
	return nil
}

func (mc *MockClient) Calls() []Call {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]Call(nil), mc.calls...)
}

// CallCount counts the calls of a method, for a single session if sessionId is not empty.
func (mc *MockClient) CallCount(method, sessionId string) int {
	count := 0
	for _, call := range mc.Calls() {
		if call.Method == method && (sessionId == "" || call.SessionId == sessionId) {
			count++
		}
	}
	return count
}

// Uploaded returns the content stored by a session that was not dropped.
func (mc *MockClient) Uploaded(sessionId string) map[string][]byte {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	stored := map[string][]byte{}
	for path, data := range mc.uploaded[sessionId] {
		stored[path] = data
	}
	return stored
}

func (mc *MockClient) record(ctx context.Context, method, sessionId, path string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.calls = append(mc.calls, Call{Method: method, SessionId: sessionId, Path: path, Cancelled: ctx.Err() != nil})
}

func (mc *MockClient) nextUploadFailure(path string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	failures := mc.UploadFailures[path]
	if len(failures) == 0 {
		return nil
	}
	mc.UploadFailures[path] = failures[1:]
	return failures[0]
}
