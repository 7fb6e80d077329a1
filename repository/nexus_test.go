package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDescriptor = &entities.ArtifactDescriptor{
	Coordinates: entities.Coordinates{GroupId: "org.hypertrace.core", ArtifactId: "lib", Version: "1.2.0"},
	Packaging:   "jar",
}

// fakeNexus serves the subset of the Nexus staging API used by NexusClient.
type fakeNexus struct {
	mu           sync.Mutex
	rejectClose  bool
	uploads      map[string]string
	requests     []string
	repositoryId string
	state        string
	// pending is the type the repository moves to once the running transition finishes.
	pending string
	// startDelay is the number of status polls answered before a requested transition starts.
	startDelay  int
	polls       int
	closeFailed bool
}

func newFakeNexus(t *testing.T) (*fakeNexus, *httptest.Server) {
	nexus := &fakeNexus{uploads: map[string]string{}, repositoryId: "orghypertrace-1001"}
	server := httptest.NewServer(http.HandlerFunc(nexus.serve))
	t.Cleanup(server.Close)
	return nexus, server
}

func (fn *fakeNexus) serve(w http.ResponseWriter, r *http.Request) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.requests = append(fn.requests, r.Method+" "+r.URL.Path)
	if user, password, ok := r.BasicAuth(); !ok || user != "user" || password != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/staging/profiles":
		fmt.Fprint(w, `{"data":[{"id":"p1","name":"org.hypertrace"},{"id":"p2","name":"org.hypertrace.core"},{"id":"p3","name":"org.other"}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/staging/profiles/p2/start":
		fn.state = stagingTypeOpen
		fmt.Fprintf(w, `{"data":{"stagedRepositoryId":"%s","description":"x"}}`, fn.repositoryId)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/staging/deployByRepositoryId/"+fn.repositoryId+"/"):
		body, _ := io.ReadAll(r.Body)
		fn.uploads[strings.TrimPrefix(r.URL.Path, "/staging/deployByRepositoryId/"+fn.repositoryId+"/")] = string(body)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPost && r.URL.Path == "/staging/bulk/close":
		fn.transition(stagingTypeClosed)
		if fn.rejectClose {
			fn.pending = stagingTypeOpen
		}
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPost && r.URL.Path == "/staging/bulk/promote":
		fn.transition(stagingTypeReleased)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPost && r.URL.Path == "/staging/bulk/drop":
		fn.state, fn.pending = "", ""
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && r.URL.Path == "/staging/repository/"+fn.repositoryId:
		if fn.state == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fn.polls++
		transitioning := false
		switch {
		case fn.pending == "" || fn.polls <= fn.startDelay:
		case fn.polls == fn.startDelay+1:
			transitioning = true
		default:
			fn.closeFailed = fn.rejectClose && fn.state == stagingTypeOpen
			fn.state, fn.pending = fn.pending, ""
		}
		fmt.Fprintf(w, `{"repositoryId":"%s","type":"%s","transitioning":%t}`, fn.repositoryId, fn.state, transitioning)
	case r.Method == http.MethodGet && r.URL.Path == "/staging/repository/"+fn.repositoryId+"/activity":
		if !fn.closeFailed {
			fmt.Fprint(w, `[{"name":"open","events":[{"name":"repositoryCreated"}]},
				{"name":"close","events":[{"name":"ruleEvaluate","properties":[{"name":"typeId","value":"sources-staging"}]}]}]`)
			return
		}
		fmt.Fprint(w, `[{"name":"close","events":[
			{"name":"ruleEvaluate","properties":[{"name":"typeId","value":"sources-staging"}]},
			{"name":"ruleFailed","properties":[{"name":"typeId","value":"javadoc-staging"},{"name":"failureMessage","value":"Missing: no javadoc jar found"}]},
			{"name":"ruleFailed","properties":[{"name":"failureMessage","value":"Missing Signature: '/org/hypertrace/core/lib/1.2.0/lib-1.2.0.jar.asc'"}]},
			{"name":"repositoryCloseFailed"}]}]`)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (fn *fakeNexus) transition(to string) {
	fn.pending = to
	fn.polls = 0
}

func (fn *fakeNexus) pollCount() int {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	return fn.polls
}

func newTestNexusClient(serverUrl, profile string) *NexusClient {
	options := DefaultClientOptions()
	options.PollInterval = 10 * time.Millisecond
	options.TransitionTimeout = 5 * time.Second
	return NewNexusClient(serverUrl, profile, Credentials{Username: "user", Password: "secret"}, options)
}

func TestNexusPublishFlow(t *testing.T) {
	nexus, server := newFakeNexus(t)
	client := newTestNexusClient(server.URL, "")
	ctx := context.Background()

	sessionId, err := client.Open(ctx, testDescriptor)
	require.NoError(t, err)
	assert.Equal(t, "orghypertrace-1001", sessionId)

	require.NoError(t, client.Upload(ctx, sessionId, "org/hypertrace/core/lib/1.2.0/lib-1.2.0.jar", strings.NewReader("jar"), 3))
	require.NoError(t, client.Close(ctx, sessionId))
	require.NoError(t, client.Release(ctx, sessionId))

	assert.Equal(t, "jar", nexus.uploads["org/hypertrace/core/lib/1.2.0/lib-1.2.0.jar"])
	assert.Equal(t, stagingTypeReleased, nexus.state)
}

func TestNexusCloseRejected(t *testing.T) {
	nexus, server := newFakeNexus(t)
	nexus.rejectClose = true
	client := newTestNexusClient(server.URL, "org.hypertrace.core")
	ctx := context.Background()

	sessionId, err := client.Open(ctx, testDescriptor)
	require.NoError(t, err)
	err = client.Close(ctx, sessionId)
	var validationErr *utils.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, sessionId, validationErr.SessionId)
	assert.Equal(t, []string{
		"Missing: no javadoc jar found",
		"Missing Signature: '/org/hypertrace/core/lib/1.2.0/lib-1.2.0.jar.asc'",
	}, validationErr.Failures)

	require.NoError(t, client.Drop(ctx, sessionId))
	assert.Contains(t, nexus.requests, "POST /staging/bulk/drop")
}

func TestNexusCloseStartsLate(t *testing.T) {
	nexus, server := newFakeNexus(t)
	nexus.startDelay = 2
	client := newTestNexusClient(server.URL, "")
	ctx := context.Background()

	sessionId, err := client.Open(ctx, testDescriptor)
	require.NoError(t, err)
	// The repository reports open/false twice, then open/true, then closed/false.
	require.NoError(t, client.Close(ctx, sessionId))
	assert.Equal(t, 4, nexus.pollCount())
	assert.Equal(t, stagingTypeClosed, nexus.state)

	require.NoError(t, client.Release(ctx, sessionId))
	assert.Equal(t, stagingTypeReleased, nexus.state)
	assert.NotContains(t, nexus.requests, "POST /staging/bulk/drop")
}

func TestNexusCloseRejectedAfterLateStart(t *testing.T) {
	nexus, server := newFakeNexus(t)
	nexus.rejectClose = true
	nexus.startDelay = 3
	client := newTestNexusClient(server.URL, "")
	ctx := context.Background()

	sessionId, err := client.Open(ctx, testDescriptor)
	require.NoError(t, err)
	err = client.Close(ctx, sessionId)
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Failures, 2)
	assert.Equal(t, 5, nexus.pollCount())
}

func TestNexusCloseTimesOut(t *testing.T) {
	nexus, server := newFakeNexus(t)
	nexus.startDelay = 1000
	options := DefaultClientOptions()
	options.PollInterval = 5 * time.Millisecond
	options.TransitionTimeout = 50 * time.Millisecond
	client := NewNexusClient(server.URL, "", Credentials{Username: "user", Password: "secret"}, options)
	ctx := context.Background()

	sessionId, err := client.Open(ctx, testDescriptor)
	require.NoError(t, err)
	err = client.Close(ctx, sessionId)
	require.Error(t, err)
	var validationErr *utils.ValidationError
	assert.False(t, errors.As(err, &validationErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNexusUnknownProfile(t *testing.T) {
	_, server := newFakeNexus(t)
	client := newTestNexusClient(server.URL, "com.example")
	_, err := client.Open(context.Background(), testDescriptor)
	var configErr *utils.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestNexusUploadStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, test := range tests {
		t.Run(http.StatusText(test.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
			}))
			defer server.Close()
			client := newTestNexusClient(server.URL, "")
			err := client.Upload(context.Background(), "repo-1", "a/b.jar", strings.NewReader("x"), 1)
			var uploadErr *utils.UploadError
			require.True(t, errors.As(err, &uploadErr))
			assert.Equal(t, test.status, uploadErr.StatusCode)
			assert.Equal(t, test.transient, uploadErr.Transient)
			assert.Equal(t, "a/b.jar", uploadErr.Path)
		})
	}
}

func TestNexusUploadNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverUrl := server.URL
	server.Close()

	client := newTestNexusClient(serverUrl, "")
	err := client.Upload(context.Background(), "repo-1", "a/b.jar", strings.NewReader("x"), 1)
	assert.True(t, utils.IsTransient(err))
}
