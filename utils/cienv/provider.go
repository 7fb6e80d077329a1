// Package cienv detects the CI system the publisher runs in, and the repository it builds.
//
// CI detection requires the CI=true environment variable, plus the variables of a registered provider.
// The detected repository provides defaults for the SCM section of generated POMs and for the publication record.
package cienv

import "os"

const CIEnvVar = "CI"

// VcsInfo describes the repository being built.
type VcsInfo struct {
	Provider string
	// Org is the owner of the repository, Repo its name without the owner.
	Org      string
	Repo     string
	Url      string
	Revision string
	Branch   string
}

func (v VcsInfo) IsEmpty() bool {
	return v.Org == "" && v.Repo == ""
}

type Provider interface {
	Name() string
	// IsActive reports whether the process runs in this CI system.
	IsActive() bool
	GetVcsInfo() VcsInfo
}

// providers is only written from init functions.
var providers []Provider

func RegisterProvider(p Provider) {
	providers = append(providers, p)
}

// GetActiveProvider returns the provider of the current CI system, or nil outside of a supported CI.
func GetActiveProvider() Provider {
	if os.Getenv(CIEnvVar) != "true" {
		return nil
	}
	for _, p := range providers {
		if p.IsActive() {
			return p
		}
	}
	return nil
}

// GetVcsInfo returns the repository information of the active provider, or an empty VcsInfo.
func GetVcsInfo() VcsInfo {
	provider := GetActiveProvider()
	if provider == nil {
		return VcsInfo{}
	}
	return provider.GetVcsInfo()
}
