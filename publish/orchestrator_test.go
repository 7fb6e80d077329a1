package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/repository"
	"github.com/hypertrace/artifact-publisher/staging"
	"github.com/hypertrace/artifact-publisher/tests"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	config := DefaultConfig()
	config.Retry = staging.RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	config.DropTimeout = time.Second
	return config
}

func newTestSnapshot(t *testing.T, kind repository.ProtocolKind, names ...string) *repository.Snapshot {
	registry := repository.NewRegistry()
	for _, name := range names {
		require.NoError(t, registry.Register(repository.RepositoryTarget{Name: name, Url: "https://" + name + ".example.com/service/local/", Kind: kind}))
	}
	return registry.Snapshot()
}

// mockFactory hands out one mock client per target.
func mockFactory(clients map[string]*tests.MockClient) repository.ClientFactory {
	return func(target repository.RepositoryTarget, _ *entities.ArtifactDescriptor) (repository.Client, error) {
		client, ok := clients[target.Name]
		if !ok {
			return nil, errors.New("no client for " + target.Name)
		}
		return client, nil
	}
}

func TestPublishAcceptAll(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	clients := map[string]*tests.MockClient{"a": tests.NewMockClient(), "b": tests.NewMockClient()}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a", "b"), mockFactory(clients), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"a", "b"})
	require.Len(t, results.Results, 2)
	for _, result := range results.Results {
		assert.Equal(t, entities.StatusSuccess, result.Status, result.Error)
		assert.Equal(t, string(staging.Closed), result.State)
		assert.Len(t, result.Uploaded, tests.ExpectedUploads(descriptor))
		assert.Equal(t, 1, clients[result.Target].CallCount(tests.CloseMethod, result.SessionId))
	}
	assert.Equal(t, 0, results.ExitCode())
}

func TestPublishForbiddenUploadNamesCredentials(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	registry := repository.NewRegistry()
	require.NoError(t, registry.Register(repository.RepositoryTarget{
		Name:        "central",
		Url:         "https://central.example.com/service/local/",
		Kind:        repository.Staging,
		Credentials: repository.CredentialRef{UsernameProperty: "ossrhUsername", PasswordProperty: "ossrhPassword"},
	}))
	require.NoError(t, registry.Register(repository.RepositoryTarget{Name: "internal", Url: "https://repo.example.com/maven", Kind: repository.Direct}))
	clients := map[string]*tests.MockClient{"central": tests.NewMockClient(), "internal": tests.NewMockClient()}
	primaryPath := descriptor.RemotePath(descriptor.Primary())
	clients["central"].UploadFailures[primaryPath] = []error{utils.NewUploadErrorFromStatus(primaryPath, 401, "")}
	clients["internal"].UploadFailures[primaryPath] = []error{utils.NewUploadErrorFromStatus(primaryPath, 403, "")}
	orchestrator := NewOrchestrator(testConfig(), registry.Snapshot(), mockFactory(clients), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"central", "internal"})
	central, ok := results.Get("central")
	require.True(t, ok)
	assert.Equal(t, entities.StatusFailed, central.Status)
	assert.Contains(t, central.Error, "status code: 401")
	assert.Contains(t, central.Error, "check the credentials provided as ossrhUsername and ossrhPassword")

	internal, ok := results.Get("internal")
	require.True(t, ok)
	assert.Contains(t, internal.Error, "the repository requires credentials")
	assert.Equal(t, 1, clients["internal"].CallCount(tests.UploadMethod, internal.SessionId))
}

func TestPublishOneTargetRejectsClose(t *testing.T) {
	// Two files: the primary jar and the generated POM.
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	require.Len(t, descriptor.Artifacts, 2)
	clients := map[string]*tests.MockClient{"a": tests.NewMockClient(), "b": tests.NewMockClient()}
	clients["b"].CloseErr = &utils.ValidationError{Failures: []string{"Missing: no javadoc jar found"}}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a", "b"), mockFactory(clients), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"a", "b"})
	a, ok := results.Get("a")
	require.True(t, ok)
	assert.Equal(t, entities.StatusSuccess, a.Status)
	assert.Equal(t, string(staging.Closed), a.State)

	b, ok := results.Get("b")
	require.True(t, ok)
	assert.Equal(t, entities.StatusFailed, b.Status)
	assert.Equal(t, string(staging.Dropped), b.State)
	assert.Contains(t, b.Error, "Missing: no javadoc jar found")
	var validationErr *utils.ValidationError
	assert.True(t, errors.As(b.Err, &validationErr))
	assert.Equal(t, 1, clients["b"].CallCount(tests.CloseMethod, b.SessionId))
	assert.Equal(t, 1, clients["b"].CallCount(tests.DropMethod, b.SessionId))
	assert.Zero(t, clients["a"].CallCount(tests.DropMethod, ""))

	assert.Equal(t, 1, results.ExitCode())
}

func TestPublishRetriesTransientUpload(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	client := tests.NewMockClient()
	primaryPath := descriptor.RemotePath(descriptor.Primary())
	transient := &utils.UploadError{Path: primaryPath, StatusCode: 503, Transient: true}
	client.UploadFailures[primaryPath] = []error{transient, transient}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(map[string]*tests.MockClient{"a": client}), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"a"})
	require.Len(t, results.Results, 1)
	assert.Equal(t, entities.StatusSuccess, results.Results[0].Status)
	assert.Equal(t, 0, results.ExitCode())
}

func TestPublishUnknownAndDuplicateTargets(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	clients := map[string]*tests.MockClient{"a": tests.NewMockClient()}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(clients), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"a", "missing", "a"})
	require.Len(t, results.Results, 2)
	assert.Equal(t, "a", results.Results[0].Target)
	assert.Equal(t, entities.StatusSuccess, results.Results[0].Status)
	assert.Equal(t, "missing", results.Results[1].Target)
	assert.Equal(t, entities.StatusFailed, results.Results[1].Status)
	var unknownErr *utils.UnknownTargetError
	assert.True(t, errors.As(results.Results[1].Err, &unknownErr))
	assert.Equal(t, 1, clients["a"].CallCount(tests.OpenMethod, ""))
	assert.Equal(t, 1, results.ExitCode())
}

func TestPublishNoTargets(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(nil), nil)
	results := orchestrator.Publish(context.Background(), descriptor, nil)
	assert.Empty(t, results.Results)
	assert.Equal(t, 1, results.ExitCode())
}

func TestPublishReleaseRules(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	clients := map[string]*tests.MockClient{"a": tests.NewMockClient()}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Direct, "a"), mockFactory(clients), nil)
	results := orchestrator.Publish(context.Background(), descriptor, []string{"a"})
	assert.Equal(t, string(staging.Released), results.Results[0].State)

	config := testConfig()
	config.AutoRelease = true
	clients["a"] = tests.NewMockClient()
	clients["a"].ReleaseErr = errors.New("promotion failed")
	orchestrator = NewOrchestrator(config, newTestSnapshot(t, repository.Staging, "a"), mockFactory(clients), nil)
	results = orchestrator.Publish(context.Background(), descriptor, []string{"a"})
	assert.Equal(t, entities.StatusPartiallyUploaded, results.Results[0].Status)
	assert.Equal(t, string(staging.Closed), results.Results[0].State)
	assert.Equal(t, 1, results.ExitCode())
}

func TestPublishFactoryFailure(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(nil), nil)
	results := orchestrator.Publish(context.Background(), descriptor, []string{"a"})
	assert.Equal(t, entities.StatusFailed, results.Results[0].Status)
	assert.Equal(t, "no client for a", results.Results[0].Error)
	assert.Empty(t, results.Results[0].State)
}

func TestTargetsDoNotShareSessions(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	shared := tests.NewMockClient()
	shared.UploadDelay = time.Millisecond
	clients := map[string]*tests.MockClient{"a": shared, "b": shared, "c": shared}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a", "b", "c"), mockFactory(clients), nil)

	results := orchestrator.Publish(context.Background(), descriptor, []string{"a", "b", "c"})
	sessions := utils.NewStringSet()
	for _, result := range results.Results {
		require.Equal(t, entities.StatusSuccess, result.Status)
		assert.True(t, sessions.Add(result.SessionId), "session %s reused", result.SessionId)
		assert.Len(t, shared.Uploaded(result.SessionId), tests.ExpectedUploads(descriptor))
	}
}

func TestConcurrentPublishesSerializePerTarget(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	client := tests.NewMockClient()
	client.UploadDelay = time.Millisecond
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(map[string]*tests.MockClient{"a": client}), nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := orchestrator.Publish(context.Background(), descriptor, []string{"a"})
			assert.Equal(t, 0, results.ExitCode())
		}()
	}
	wg.Wait()

	// Every call between the open of a session and its close belongs to that session.
	current := ""
	for _, call := range client.Calls() {
		switch call.Method {
		case tests.OpenMethod:
			assert.Empty(t, current, "a session was opened while another one was in progress")
			current = "opening"
		case tests.CloseMethod:
			assert.Equal(t, current, call.SessionId)
			current = ""
		default:
			if current == "opening" {
				current = call.SessionId
			}
			assert.Equal(t, current, call.SessionId)
		}
	}
	assert.Equal(t, 3, client.CallCount(tests.CloseMethod, ""))
}

func TestPublishCancelled(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	client := tests.NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.BeforeUpload = func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	}
	orchestrator := NewOrchestrator(testConfig(), newTestSnapshot(t, repository.Staging, "a"), mockFactory(map[string]*tests.MockClient{"a": client}), nil)

	results := orchestrator.Publish(ctx, descriptor, []string{"a"})
	assert.Equal(t, entities.StatusFailed, results.Results[0].Status)
	assert.Equal(t, string(staging.Dropped), results.Results[0].State)
	assert.ErrorIs(t, results.Results[0].Err, context.Canceled)
	assert.Equal(t, 1, client.CallCount(tests.DropMethod, ""))
}

func TestNewBuildInfo(t *testing.T) {
	descriptor := tests.CreateTestDescriptor(t, tests.TestCoordinates)
	results := &entities.PublishResults{Results: []entities.PublishResult{
		{Target: "a", Status: entities.StatusSuccess},
		{Target: "b", Status: entities.StatusFailed},
		{Target: "c", Status: entities.StatusSuccess},
	}}
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	buildInfo := NewBuildInfo(descriptor, results, "1.0.0", started)
	assert.Equal(t, "org.hypertrace.core:lib", buildInfo.Name)
	assert.Equal(t, "1.2.0", buildInfo.Number)
	assert.Equal(t, AgentName, buildInfo.Agent.Name)
	assert.Equal(t, started.Format(entities.TimeFormat), buildInfo.Started)
	require.Len(t, buildInfo.Modules, 1)
	artifacts := buildInfo.Modules[0].Artifacts
	require.Len(t, artifacts, 4)
	repos := utils.NewStringSet()
	for _, artifact := range artifacts {
		repos.Add(artifact.OriginalDeploymentRepo)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, repos.ToSlice())
}
