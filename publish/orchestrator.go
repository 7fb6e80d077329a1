package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/repository"
	"github.com/hypertrace/artifact-publisher/staging"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/parallel"
)

// Orchestrator publishes a descriptor to several repository targets at once.
// Each target runs its own staging session: a failing target never aborts the others.
type Orchestrator struct {
	config  Config
	targets *repository.Snapshot
	clients repository.ClientFactory
	logger  utils.Log
}

func NewOrchestrator(config Config, targets *repository.Snapshot, clients repository.ClientFactory, logger utils.Log) *Orchestrator {
	if logger == nil {
		logger = &utils.NullLog{}
	}
	return &Orchestrator{config: config.normalized(), targets: targets, clients: clients, logger: logger}
}

// Publish publishes the descriptor to the named targets and returns one result per distinct name, in request order.
// Unknown targets are reported as failed results.
func (o *Orchestrator) Publish(ctx context.Context, descriptor *entities.ArtifactDescriptor, targetNames []string) *entities.PublishResults {
	names := utils.NewStringSet(targetNames...).ToSlice()
	results := &entities.PublishResults{Coordinates: descriptor.Coordinates.String(), Results: make([]entities.PublishResult, len(names))}
	if len(names) == 0 {
		return results
	}

	runner := parallel.NewBounedRunner(o.config.Parallelism, false)
	go func() {
		defer runner.Done()
		for i, name := range names {
			index, targetName := i, name
			_, _ = runner.AddTaskWithError(func(int) error {
				results.Results[index] = o.publishTarget(ctx, descriptor, targetName)
				return nil
			}, func(err error) {
				o.logger.Error(err.Error())
			})
		}
	}()
	runner.Run()

	for _, result := range results.Results {
		if result.Succeeded() {
			o.logger.Info(fmt.Sprintf("Published %s to '%s' in %s", results.Coordinates, result.Target, result.Duration))
		} else {
			o.logger.Error(fmt.Sprintf("Failed publishing %s to '%s': %s", results.Coordinates, result.Target, result.Error))
		}
	}
	return results
}

func (o *Orchestrator) publishTarget(ctx context.Context, descriptor *entities.ArtifactDescriptor, name string) (result entities.PublishResult) {
	start := time.Now()
	result.Target = name
	var target repository.RepositoryTarget
	defer func() {
		result.Duration = time.Since(start).Round(time.Millisecond).String()
		if result.Err != nil {
			result.Error = result.Err.Error()
			if utils.IsForbidden(result.Err) {
				result.Error += credentialsHint(target.Credentials)
			}
		}
	}()

	target, err := o.targets.Resolve(name)
	if err != nil {
		return failed(result, err)
	}
	snapshot := descriptor.IsSnapshot()
	result.Repository = utils.MaskCredentials(target.UrlFor(snapshot))
	client, err := o.clients(target, descriptor)
	if err != nil {
		return failed(result, err)
	}

	release, err := o.targets.Acquire(ctx, name)
	if err != nil {
		return failed(result, err)
	}
	defer release()

	options := staging.Options{
		Retry:       o.config.Retry,
		Release:     o.config.AutoRelease || target.KindFor(snapshot) != repository.Staging,
		DropTimeout: o.config.DropTimeout,
	}
	session, err := staging.NewCoordinator(name, client, options, o.logger).Run(ctx, descriptor)
	if session != nil {
		result.SessionId = session.Id
		result.State = string(session.State())
		result.Uploaded = session.Uploaded()
	}
	if err != nil {
		result = failed(result, err)
		if isPartiallyUploaded(session) {
			result.Status = entities.StatusPartiallyUploaded
		}
		return result
	}
	result.Status = entities.StatusSuccess
	return result
}

// isPartiallyUploaded reports whether a failed session may have left content on the repository:
// it was closed but not released, or it could not be dropped.
func isPartiallyUploaded(session *staging.Session) bool {
	if session == nil {
		return false
	}
	return session.State() == staging.Closed || (session.DropErr() != nil && len(session.Uploaded()) > 0)
}

func credentialsHint(ref repository.CredentialRef) string {
	if ref.IsAnonymous() {
		return "; the repository requires credentials, set usernameProperty and passwordProperty on the target"
	}
	return fmt.Sprintf("; check the credentials provided as %s and %s", ref.UsernameProperty, ref.PasswordProperty)
}

func failed(result entities.PublishResult, err error) entities.PublishResult {
	result.Status = entities.StatusFailed
	result.Err = err
	return result
}
