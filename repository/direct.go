package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/jfrog/gofrog/log"
)

// DirectClient uploads straight into a maven2 repository. Sessions are tracked locally:
// Open and Close are bookkeeping, and Drop deletes whatever the session uploaded.
type DirectClient struct {
	http     *httpClient
	mu       sync.Mutex
	sessions map[string][]string
}

func NewDirectClient(repositoryUrl string, credentials Credentials, options ClientOptions) *DirectClient {
	return &DirectClient{http: newHttpClient(repositoryUrl, credentials, options), sessions: map[string][]string{}}
}

func (dc *DirectClient) Open(_ context.Context, _ *entities.ArtifactDescriptor) (string, error) {
	sessionId := uuid.NewString()
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.sessions[sessionId] = nil
	return sessionId, nil
}

func (dc *DirectClient) Upload(ctx context.Context, sessionId, remotePath string, content io.Reader, size int64) error {
	if err := dc.http.upload(ctx, remotePath, remotePath, content, size); err != nil {
		return err
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.sessions[sessionId] = append(dc.sessions[sessionId], remotePath)
	return nil
}

func (dc *DirectClient) Close(_ context.Context, sessionId string) error {
	return dc.forget(sessionId, false)
}

func (dc *DirectClient) Release(_ context.Context, sessionId string) error {
	return dc.forget(sessionId, true)
}

// Drop deletes the uploaded files. Deletion is best-effort: failures are logged, not returned.
func (dc *DirectClient) Drop(ctx context.Context, sessionId string) error {
	dc.mu.Lock()
	paths := dc.sessions[sessionId]
	delete(dc.sessions, sessionId)
	dc.mu.Unlock()
	for _, remotePath := range paths {
		status, _, err := dc.http.send(ctx, http.MethodDelete, remotePath, nil, "")
		if err != nil || (!isSuccess(status) && status != http.StatusNotFound) {
			log.Warn(fmt.Sprintf("Could not delete %s (status code: %d, error: %v)", remotePath, status, err))
		}
	}
	return nil
}

func (dc *DirectClient) forget(sessionId string, remove bool) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if _, ok := dc.sessions[sessionId]; !ok {
		return fmt.Errorf("unknown session '%s'", sessionId)
	}
	if remove {
		delete(dc.sessions, sessionId)
	}
	return nil
}
