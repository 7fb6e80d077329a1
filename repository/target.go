package repository

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/hypertrace/artifact-publisher/utils"
)

// ProtocolKind tells how artifacts reach a repository.
type ProtocolKind string

const (
	// Direct uploads every file straight into the maven2 layout.
	Direct ProtocolKind = "direct"
	// Staging requires a staging transaction that is closed (validated) and released.
	Staging ProtocolKind = "staging"
	// Local publishes into a directory on this machine.
	Local ProtocolKind = "local"
)

func ParseProtocolKind(kind string) (ProtocolKind, error) {
	switch ProtocolKind(kind) {
	case Direct, Staging, Local:
		return ProtocolKind(kind), nil
	case "":
		return Direct, nil
	}
	return "", fmt.Errorf("unsupported repository kind '%s', expected one of %s, %s, %s", kind, Direct, Staging, Local)
}

// RepositoryTarget is a named remote repository endpoint. Targets are values: the registry hands out copies.
type RepositoryTarget struct {
	Name string
	// Url is the repository base URL. For the staging kind, it is the Nexus service URL (…/service/local/).
	// For the local kind, it is a directory path.
	Url string
	// UrlProperty names a property holding the base URL, read when publishing. UrlPath is appended to it.
	UrlProperty string
	UrlPath     string
	// SnapshotUrl receives SNAPSHOT versions with direct uploads, since staging repositories reject them.
	SnapshotUrl string
	Kind        ProtocolKind
	Credentials CredentialRef
	// StagingProfile is the Nexus staging profile (package group). When empty, it is matched against the group id.
	StagingProfile string
}

func (t RepositoryTarget) Validate() error {
	if t.Name == "" {
		return &utils.ConfigurationError{Property: "name", Message: "a repository target must have a name"}
	}
	if t.Url == "" && t.UrlProperty == "" {
		return &utils.ConfigurationError{Property: t.Name + ".url", Message: "a repository target must have a URL"}
	}
	if t.Kind == Local {
		return nil
	}
	for _, rawUrl := range []string{t.Url, t.SnapshotUrl} {
		if rawUrl == "" {
			continue
		}
		parsed, err := url.Parse(rawUrl)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return &utils.ConfigurationError{Property: t.Name + ".url", Message: fmt.Sprintf("'%s' is not a valid URL", utils.MaskCredentials(rawUrl))}
		}
	}
	return nil
}

// WithUrlFrom reads the base URL from source when the target takes it from a property.
func (t RepositoryTarget) WithUrlFrom(source CredentialSource) (RepositoryTarget, error) {
	if t.UrlProperty == "" {
		return t, nil
	}
	value, ok := source.Lookup(t.UrlProperty)
	if !ok {
		return t, missingPropertyError(t.UrlProperty)
	}
	t.Url = strings.TrimSuffix(value, "/")
	if t.UrlPath != "" {
		t.Url += "/" + strings.TrimPrefix(t.UrlPath, "/")
	}
	t.UrlProperty = ""
	return t, t.Validate()
}

// DisplayUrl is the URL shown to users, with a property reference when it is not resolved yet.
func (t RepositoryTarget) DisplayUrl() string {
	if t.UrlProperty == "" {
		return utils.MaskCredentials(t.Url)
	}
	return path.Join("${"+t.UrlProperty+"}", t.UrlPath)
}

// UrlFor returns the URL the descriptor version should be uploaded to.
func (t RepositoryTarget) UrlFor(snapshot bool) string {
	if snapshot && t.SnapshotUrl != "" {
		return t.SnapshotUrl
	}
	return t.Url
}

// KindFor returns the protocol used for a version: snapshots bypass staging when a snapshot URL is configured.
func (t RepositoryTarget) KindFor(snapshot bool) ProtocolKind {
	if snapshot && t.Kind == Staging && t.SnapshotUrl != "" {
		return Direct
	}
	return t.Kind
}
