package staging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/repository"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/pkg/errors"
)

// RetryPolicy bounds the retries of a single file upload. Only transient upload errors are retried.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, MinBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

// Backoff returns the wait before the attempt following the given one (1-based).
func (rp RetryPolicy) Backoff(attempt int) time.Duration {
	return retryablehttp.DefaultBackoff(rp.MinBackoff, rp.MaxBackoff, attempt-1, nil)
}

type Options struct {
	Retry RetryPolicy
	// Release promotes the session after a successful close.
	Release bool
	// DropTimeout bounds the drop issued after a failure or a cancellation.
	DropTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{Retry: DefaultRetryPolicy(), DropTimeout: 2 * time.Minute}
}

// Coordinator drives one staging session on one target through its lifecycle:
// open, upload every file, close, and release, dropping the session on any failure before close completes.
type Coordinator struct {
	target  string
	client  repository.Client
	options Options
	logger  utils.Log
}

func NewCoordinator(target string, client repository.Client, options Options, logger utils.Log) *Coordinator {
	if options.Retry.MaxAttempts < 1 {
		options.Retry.MaxAttempts = 1
	}
	if logger == nil {
		logger = &utils.NullLog{}
	}
	return &Coordinator{target: target, client: client, options: options, logger: logger}
}

// upload is one file transfer: a descriptor artifact, a checksum sidecar or a signature.
type upload struct {
	remotePath string
	size       int64
	open       func() (io.ReadCloser, error)
}

// Run publishes the descriptor. The returned session is nil only if the repository refused to open one.
// On error, the session is Dropped, or Closed when only the release failed.
func (c *Coordinator) Run(ctx context.Context, descriptor *entities.ArtifactDescriptor) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sessionId, err := c.client.Open(ctx, descriptor)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening a staging session on '%s'", c.target)
	}
	session := newSession(sessionId, c.target)
	c.logger.Debug(fmt.Sprintf("[%s] Opened staging session %s for %s", c.target, sessionId, descriptor.Coordinates.String()))

	if err = session.transition(Uploading); err != nil {
		return session, c.abort(ctx, session, err)
	}
	for _, u := range uploads(descriptor) {
		if err = c.uploadWithRetry(ctx, session, u); err != nil {
			return session, c.abort(ctx, session, err)
		}
		session.uploaded = append(session.uploaded, u.remotePath)
	}
	if err = session.transition(ReadyToClose); err != nil {
		return session, c.abort(ctx, session, err)
	}
	if err = ctx.Err(); err != nil {
		return session, c.abort(ctx, session, err)
	}

	if err = session.beginClose(); err != nil {
		return session, c.abort(ctx, session, err)
	}
	if err = c.client.Close(ctx, session.Id); err != nil {
		return session, c.abort(ctx, session, err)
	}
	if err = session.transition(Closed); err != nil {
		return session, err
	}
	c.logger.Info(fmt.Sprintf("[%s] Closed staging session %s with %d files", c.target, session.Id, len(session.uploaded)))
	if !c.options.Release {
		return session, nil
	}

	// A failed release leaves the server state ambiguous: the session is neither retried nor dropped.
	if err = c.client.Release(ctx, session.Id); err != nil {
		return session, errors.Wrapf(err, "failed releasing staging session %s", session.Id)
	}
	if err = session.transition(Released); err != nil {
		return session, err
	}
	c.logger.Info(fmt.Sprintf("[%s] Released staging session %s", c.target, session.Id))
	return session, nil
}

func (c *Coordinator) uploadWithRetry(ctx context.Context, session *Session, u upload) (err error) {
	for attempt := 1; ; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.uploadOnce(ctx, session, u); err == nil {
			return nil
		}
		if !utils.IsTransient(err) || attempt >= c.options.Retry.MaxAttempts {
			return err
		}
		backoff := c.options.Retry.Backoff(attempt)
		c.logger.Warn(fmt.Sprintf("[%s] Attempt %d/%d of %s failed, retrying in %s: %s",
			c.target, attempt, c.options.Retry.MaxAttempts, u.remotePath, backoff, err.Error()))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Coordinator) uploadOnce(ctx context.Context, session *Session, u upload) (err error) {
	content, err := u.open()
	if err != nil {
		return &utils.UploadError{Path: u.remotePath, Err: err}
	}
	defer func() {
		if e := content.Close(); err == nil && e != nil {
			err = &utils.UploadError{Path: u.remotePath, Err: e}
		}
	}()
	return c.client.Upload(ctx, session.Id, u.remotePath, content, u.size)
}

// abort drops an open session and returns cause. The drop runs on a context detached from ctx,
// so that a cancelled publication still discards what it staged.
func (c *Coordinator) abort(ctx context.Context, session *Session, cause error) error {
	if !session.state.IsOpen() {
		return cause
	}
	dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.DropTimeout)
	defer cancel()
	c.logger.Warn(fmt.Sprintf("[%s] Dropping staging session %s: %s", c.target, session.Id, cause.Error()))
	if err := c.client.Drop(dropCtx, session.Id); err != nil {
		session.dropErr = err
		c.logger.Error(fmt.Sprintf("[%s] Failed dropping staging session %s: %s", c.target, session.Id, err.Error()))
	}
	session.state = Dropped
	return cause
}

// uploads lists the transfers of a descriptor, in order. Every artifact except signatures is followed by its checksum sidecars.
func uploads(descriptor *entities.ArtifactDescriptor) []upload {
	var result []upload
	for i := range descriptor.Artifacts {
		af := &descriptor.Artifacts[i]
		remotePath := descriptor.RemotePath(af)
		result = append(result, upload{remotePath: remotePath, size: af.Size, open: af.Open})
		if af.IsSignature() {
			continue
		}
		for _, algorithm := range utils.SidecarAlgorithms {
			checksum := checksumOf(af.Checksum, algorithm)
			if checksum == "" {
				continue
			}
			result = append(result, upload{
				remotePath: remotePath + "." + algorithm.Extension(),
				size:       int64(len(checksum)),
				open: func() (io.ReadCloser, error) {
					return io.NopCloser(strings.NewReader(checksum)), nil
				},
			})
		}
	}
	return result
}

func checksumOf(checksum entities.Checksum, algorithm utils.Algorithm) string {
	switch algorithm {
	case utils.MD5:
		return checksum.Md5
	case utils.SHA1:
		return checksum.Sha1
	case utils.SHA256:
		return checksum.Sha256
	case utils.SHA512:
		return checksum.Sha512
	}
	return ""
}
