package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

const localStagingDir = ".staging"

// LocalClient publishes into a maven2 repository on the local filesystem, such as ~/.m2/repository.
// Files are staged in a hidden directory under the root and moved into place on release.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) *LocalClient {
	return &LocalClient{root: root}
}

func (lc *LocalClient) Open(_ context.Context, _ *entities.ArtifactDescriptor) (string, error) {
	sessionId := uuid.NewString()
	if err := os.MkdirAll(lc.sessionDir(sessionId), 0755); err != nil {
		return "", errors.Wrap(err, "failed creating the local staging directory")
	}
	return sessionId, nil
}

func (lc *LocalClient) Upload(ctx context.Context, sessionId, remotePath string, content io.Reader, _ int64) (err error) {
	if ctx.Err() != nil {
		return &utils.UploadError{Path: remotePath, Err: ctx.Err()}
	}
	dest := filepath.Join(lc.sessionDir(sessionId), filepath.FromSlash(remotePath))
	if err = utils.CreateDirIfNotExist(filepath.Dir(dest)); err != nil {
		return &utils.UploadError{Path: remotePath, Err: err}
	}
	file, err := os.Create(dest)
	if err != nil {
		return &utils.UploadError{Path: remotePath, Err: err}
	}
	defer func() {
		if e := file.Close(); err == nil && e != nil {
			err = &utils.UploadError{Path: remotePath, Err: e}
		}
	}()
	if _, err = io.Copy(file, content); err != nil {
		return &utils.UploadError{Path: remotePath, Err: err}
	}
	return nil
}

// Close verifies every staged file, except signatures, against its sha1 sidecar.
func (lc *LocalClient) Close(_ context.Context, sessionId string) error {
	files, err := lc.stagedFiles(sessionId)
	if err != nil {
		return err
	}
	staged := utils.NewStringSet(files...)
	var failures []string
	for _, file := range files {
		if isSidecar(file) || strings.HasSuffix(file, "."+entities.SignatureExtension) {
			continue
		}
		sidecar := file + "." + utils.SHA1.Extension()
		if !staged.Exists(sidecar) {
			failures = append(failures, fmt.Sprintf("missing checksum file %s", sidecar))
			continue
		}
		expected, err := os.ReadFile(filepath.Join(lc.sessionDir(sessionId), filepath.FromSlash(sidecar)))
		if err != nil {
			return err
		}
		checksums, err := utils.GetFileChecksums(filepath.Join(lc.sessionDir(sessionId), filepath.FromSlash(file)), utils.SHA1)
		if err != nil {
			return err
		}
		if actual := checksums[utils.SHA1]; actual != strings.TrimSpace(string(expected)) {
			failures = append(failures, fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", file, strings.TrimSpace(string(expected)), actual))
		}
	}
	if len(failures) > 0 {
		return &utils.ValidationError{SessionId: sessionId, Failures: failures}
	}
	return nil
}

// Release moves the staged files into the repository, replacing existing ones.
func (lc *LocalClient) Release(_ context.Context, sessionId string) error {
	files, err := lc.stagedFiles(sessionId)
	if err != nil {
		return err
	}
	for _, file := range files {
		dest := filepath.Join(lc.root, filepath.FromSlash(file))
		if err = utils.CreateDirIfNotExist(filepath.Dir(dest)); err != nil {
			return err
		}
		if err = utils.MoveFile(filepath.Join(lc.sessionDir(sessionId), filepath.FromSlash(file)), dest); err != nil {
			return err
		}
	}
	log.Debug(fmt.Sprintf("Released %d files into %s", len(files), lc.root))
	return os.RemoveAll(lc.sessionDir(sessionId))
}

func (lc *LocalClient) Drop(_ context.Context, sessionId string) error {
	return os.RemoveAll(lc.sessionDir(sessionId))
}

func (lc *LocalClient) sessionDir(sessionId string) string {
	return filepath.Join(lc.root, localStagingDir, sessionId)
}

func (lc *LocalClient) stagedFiles(sessionId string) ([]string, error) {
	exists, err := utils.IsDirExists(lc.sessionDir(sessionId), false)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("unknown session '%s'", sessionId)
	}
	return utils.ListFilesRecursive(lc.sessionDir(sessionId))
}

func isSidecar(file string) bool {
	for _, algorithm := range utils.SidecarAlgorithms {
		if strings.HasSuffix(file, "."+algorithm.Extension()) {
			return true
		}
	}
	return false
}
