package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hypertrace/artifact-publisher/entities"
)

// Client is the remote repository API used by the staging coordinator.
// Calls for one session are strictly sequential: Open, Upload*, Close, then Release or Drop.
type Client interface {
	// Open starts a staging transaction and returns its id.
	Open(ctx context.Context, descriptor *entities.ArtifactDescriptor) (sessionId string, err error)
	// Upload transfers one file. Failures are reported as *utils.UploadError.
	Upload(ctx context.Context, sessionId, remotePath string, content io.Reader, size int64) error
	// Close asks the repository to validate the staged content. Rejections are reported as *utils.ValidationError.
	Close(ctx context.Context, sessionId string) error
	// Release makes the closed content public.
	Release(ctx context.Context, sessionId string) error
	// Drop discards the staged content.
	Drop(ctx context.Context, sessionId string) error
}

// ClientOptions tune the network behavior of the HTTP clients.
type ClientOptions struct {
	Timeout time.Duration
	// PollInterval and TransitionTimeout bound the wait for Nexus close and release transitions.
	PollInterval      time.Duration
	TransitionTimeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:           5 * time.Minute,
		PollInterval:      5 * time.Second,
		TransitionTimeout: 15 * time.Minute,
	}
}

// ClientFactory creates the client used to publish a descriptor to a target.
type ClientFactory func(target RepositoryTarget, descriptor *entities.ArtifactDescriptor) (Client, error)

// NewClientFactory returns the factory that maps each protocol kind to its client, reading credentials from source.
func NewClientFactory(source CredentialSource, options ClientOptions) ClientFactory {
	return func(target RepositoryTarget, descriptor *entities.ArtifactDescriptor) (Client, error) {
		target, err := target.WithUrlFrom(source)
		if err != nil {
			return nil, err
		}
		credentials, err := ResolveCredentials(source, target.Credentials)
		if err != nil {
			return nil, err
		}
		snapshot := descriptor.IsSnapshot()
		baseUrl := target.UrlFor(snapshot)
		switch target.KindFor(snapshot) {
		case Staging:
			return NewNexusClient(baseUrl, target.StagingProfile, credentials, options), nil
		case Direct:
			return NewDirectClient(baseUrl, credentials, options), nil
		case Local:
			return NewLocalClient(baseUrl), nil
		}
		return nil, fmt.Errorf("unsupported repository kind '%s' for target '%s'", target.Kind, target.Name)
	}
}
