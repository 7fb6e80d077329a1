package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

const (
	stagingTypeOpen     = "open"
	stagingTypeClosed   = "closed"
	stagingTypeReleased = "released"
)

// NexusClient publishes through the Nexus staging REST API, as used by Maven Central (OSSRH).
// The session id is the id of the staged repository.
type NexusClient struct {
	http              *httpClient
	profile           string
	pollInterval      time.Duration
	transitionTimeout time.Duration
}

// NewNexusClient creates a client for the Nexus service URL, such as https://s01.oss.sonatype.org/service/local/.
func NewNexusClient(serviceUrl, profile string, credentials Credentials, options ClientOptions) *NexusClient {
	return &NexusClient{
		http:              newHttpClient(serviceUrl, credentials, options),
		profile:           profile,
		pollInterval:      options.PollInterval,
		transitionTimeout: options.TransitionTimeout,
	}
}

func (nc *NexusClient) Open(ctx context.Context, descriptor *entities.ArtifactDescriptor) (string, error) {
	profileId, err := nc.findProfile(ctx, descriptor.GroupId)
	if err != nil {
		return "", err
	}
	body, err := nc.post(ctx, "staging/profiles/"+profileId+"/start", map[string]interface{}{
		"description": descriptor.Coordinates.String(),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed starting a staging repository")
	}
	repositoryId, err := jsonparser.GetString(body, "data", "stagedRepositoryId")
	if err != nil || repositoryId == "" {
		return "", errors.Errorf("unexpected response when starting a staging repository: %s", string(body))
	}
	log.Debug(fmt.Sprintf("Opened staging repository %s in profile %s", repositoryId, profileId))
	return repositoryId, nil
}

func (nc *NexusClient) Upload(ctx context.Context, sessionId, remotePath string, content io.Reader, size int64) error {
	return nc.http.upload(ctx, "staging/deployByRepositoryId/"+sessionId+"/"+remotePath, remotePath, content, size)
}

// Close requests the close transition and waits for it. Nexus may still report the repository as open before the
// close task starts, so only a repositoryCloseFailed event is taken as a rejection; its rule failures become a
// *utils.ValidationError.
func (nc *NexusClient) Close(ctx context.Context, sessionId string) error {
	if _, err := nc.post(ctx, "staging/bulk/close", bulkRequest(sessionId, "close")); err != nil {
		return errors.Wrapf(err, "failed closing staging repository %s", sessionId)
	}
	return nc.waitFor(ctx, sessionId, func(repositoryType string) (bool, error) {
		switch repositoryType {
		case stagingTypeClosed:
			return true, nil
		case stagingTypeOpen:
			outcome, err := nc.closeActivity(ctx, sessionId)
			if err != nil {
				log.Warn(fmt.Sprintf("Failed reading the activity of staging repository %s: %s", sessionId, err.Error()))
				return false, nil
			}
			if outcome.failed {
				return true, &utils.ValidationError{SessionId: sessionId, Failures: outcome.failures}
			}
			return false, nil
		case "":
			return true, errors.Errorf("staging repository %s no longer exists", sessionId)
		default:
			return true, errors.Errorf("staging repository %s is %s after close", sessionId, repositoryType)
		}
	})
}

func (nc *NexusClient) Release(ctx context.Context, sessionId string) error {
	request := bulkRequest(sessionId, "release")
	request["autoDropAfterRelease"] = true
	if _, err := nc.post(ctx, "staging/bulk/promote", request); err != nil {
		return errors.Wrapf(err, "failed releasing staging repository %s", sessionId)
	}
	return nc.waitFor(ctx, sessionId, func(repositoryType string) (bool, error) {
		switch repositoryType {
		// A released repository may already be gone because of autoDropAfterRelease.
		case stagingTypeReleased, "":
			return true, nil
		case stagingTypeClosed:
			return false, nil
		default:
			return true, errors.Errorf("staging repository %s is %s after release", sessionId, repositoryType)
		}
	})
}

func (nc *NexusClient) Drop(ctx context.Context, sessionId string) error {
	if _, err := nc.post(ctx, "staging/bulk/drop", bulkRequest(sessionId, "drop")); err != nil {
		return errors.Wrapf(err, "failed dropping staging repository %s", sessionId)
	}
	return nil
}

// findProfile returns the id of the configured staging profile, or of the profile with the longest name
// that prefixes the group id.
func (nc *NexusClient) findProfile(ctx context.Context, groupId string) (string, error) {
	status, body, err := nc.http.send(ctx, http.MethodGet, "staging/profiles", nil, "")
	if err != nil {
		return "", errors.Wrap(err, "failed listing staging profiles")
	}
	if !isSuccess(status) {
		return "", errors.Errorf("failed listing staging profiles (status code: %d): %s", status, string(body))
	}
	var profileId, profileName string
	_, err = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		id, _ := jsonparser.GetString(value, "id")
		name, _ := jsonparser.GetString(value, "name")
		if nc.profile != "" {
			if name == nc.profile || id == nc.profile {
				profileId, profileName = id, name
			}
			return
		}
		if (groupId == name || strings.HasPrefix(groupId, name+".")) && len(name) > len(profileName) {
			profileId, profileName = id, name
		}
	}, "data")
	if err != nil {
		return "", errors.Wrap(err, "unexpected staging profiles response")
	}
	if profileId == "" {
		wanted := nc.profile
		if wanted == "" {
			wanted = groupId
		}
		return "", &utils.ConfigurationError{Property: "stagingProfile", Message: fmt.Sprintf("no staging profile matches '%s'", wanted)}
	}
	return profileId, nil
}

// waitFor polls the staged repository until done reports a final state, or the transition timeout passes.
// done is called with the repository type whenever the repository is not transitioning; an empty type means
// the repository no longer exists.
func (nc *NexusClient) waitFor(ctx context.Context, sessionId string, done func(repositoryType string) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, nc.transitionTimeout)
	defer cancel()
	ticker := time.NewTicker(nc.pollInterval)
	defer ticker.Stop()
	for {
		repositoryType, transitioning, err := nc.repositoryStatus(ctx, sessionId)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrapf(ctx.Err(), "staging repository %s did not finish its transition", sessionId)
			}
			return err
		}
		if !transitioning {
			if finished, err := done(repositoryType); finished {
				return err
			}
		}
		log.Debug(fmt.Sprintf("Waiting for staging repository %s (%s)...", sessionId, repositoryType))
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "staging repository %s did not finish its transition", sessionId)
		case <-ticker.C:
		}
	}
}

func (nc *NexusClient) repositoryStatus(ctx context.Context, sessionId string) (repositoryType string, transitioning bool, err error) {
	status, body, err := nc.http.send(ctx, http.MethodGet, "staging/repository/"+sessionId, nil, "")
	if err != nil {
		return "", false, errors.Wrapf(err, "failed reading the status of staging repository %s", sessionId)
	}
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if !isSuccess(status) {
		return "", false, errors.Errorf("failed reading the status of staging repository %s (status code: %d)", sessionId, status)
	}
	transitioning, _ = jsonparser.GetBoolean(body, "transitioning")
	repositoryType, _ = jsonparser.GetString(body, "type")
	return repositoryType, transitioning, nil
}

type closeOutcome struct {
	failed   bool
	failures []string
}

// closeActivity reads the close activity of the staged repository: whether it ended with repositoryCloseFailed,
// and the failure messages of the rules Nexus evaluated.
func (nc *NexusClient) closeActivity(ctx context.Context, sessionId string) (closeOutcome, error) {
	var outcome closeOutcome
	status, body, err := nc.http.send(ctx, http.MethodGet, "staging/repository/"+sessionId+"/activity", nil, "")
	if err != nil {
		return outcome, err
	}
	if !isSuccess(status) {
		return outcome, errors.Errorf("status code: %d", status)
	}
	_, err = jsonparser.ArrayEach(body, func(activity []byte, _ jsonparser.ValueType, _ int, _ error) {
		if name, _ := jsonparser.GetString(activity, "name"); name != "close" {
			return
		}
		_, _ = jsonparser.ArrayEach(activity, func(event []byte, _ jsonparser.ValueType, _ int, _ error) {
			switch name, _ := jsonparser.GetString(event, "name"); name {
			case "repositoryCloseFailed":
				outcome.failed = true
			case "ruleFailed":
				_, _ = jsonparser.ArrayEach(event, func(property []byte, _ jsonparser.ValueType, _ int, _ error) {
					if name, _ := jsonparser.GetString(property, "name"); name == "failureMessage" {
						if value, e := jsonparser.GetString(property, "value"); e == nil {
							outcome.failures = append(outcome.failures, value)
						}
					}
				}, "properties")
			}
		}, "events")
	})
	return outcome, err
}

func (nc *NexusClient) post(ctx context.Context, path string, data map[string]interface{}) ([]byte, error) {
	content, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return nil, err
	}
	status, body, err := nc.http.send(ctx, http.MethodPost, path, bytes.NewReader(content), "application/json")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, errors.Errorf("status code: %d: %s", status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func bulkRequest(sessionId, action string) map[string]interface{} {
	return map[string]interface{}{
		"stagedRepositoryIds": []string{sessionId},
		"description":         action + " " + sessionId,
	}
}
