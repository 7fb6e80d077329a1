package cienv

import (
	"os"
	"strings"
)

// Reference: https://docs.github.com/en/actions/learn-github-actions/environment-variables
const (
	GitHubActionsEnvVar         = "GITHUB_ACTIONS"
	GitHubRepositoryEnvVar      = "GITHUB_REPOSITORY"
	GitHubRepositoryOwnerEnvVar = "GITHUB_REPOSITORY_OWNER"
	GitHubServerUrlEnvVar       = "GITHUB_SERVER_URL"
	GitHubShaEnvVar             = "GITHUB_SHA"
	GitHubRefNameEnvVar         = "GITHUB_REF_NAME"
	GitHubWorkflowEnvVar        = "GITHUB_WORKFLOW"
	GitHubRunIdEnvVar           = "GITHUB_RUN_ID"

	GitHubProviderName = "github"
	defaultGitHubUrl   = "https://github.com"
)

type GitHubActionsProvider struct{}

func init() {
	RegisterProvider(&GitHubActionsProvider{})
}

func (g *GitHubActionsProvider) Name() string {
	return GitHubProviderName
}

// IsActive requires GITHUB_ACTIONS=true, plus the workflow and run id that GitHub always sets.
func (g *GitHubActionsProvider) IsActive() bool {
	if os.Getenv(GitHubActionsEnvVar) != "true" {
		return false
	}
	return os.Getenv(GitHubWorkflowEnvVar) != "" && os.Getenv(GitHubRunIdEnvVar) != ""
}

func (g *GitHubActionsProvider) GetVcsInfo() VcsInfo {
	info := VcsInfo{
		Provider: GitHubProviderName,
		Org:      os.Getenv(GitHubRepositoryOwnerEnvVar),
		Revision: os.Getenv(GitHubShaEnvVar),
		Branch:   os.Getenv(GitHubRefNameEnvVar),
	}
	// GITHUB_REPOSITORY is owner/repo.
	fullRepo := os.Getenv(GitHubRepositoryEnvVar)
	if info.Org == "" {
		info.Org, info.Repo, _ = strings.Cut(fullRepo, "/")
		if info.Repo == "" {
			info.Org, info.Repo = "", info.Org
		}
	} else {
		info.Repo = strings.TrimPrefix(fullRepo, info.Org+"/")
	}
	if fullRepo != "" {
		serverUrl := os.Getenv(GitHubServerUrlEnvVar)
		if serverUrl == "" {
			serverUrl = defaultGitHubUrl
		}
		info.Url = strings.TrimSuffix(serverUrl, "/") + "/" + fullRepo
	}
	return info
}
