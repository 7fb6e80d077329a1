package entities

import (
	"errors"
	"sort"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

type ModuleType string

const (
	TimeFormat = "2006-01-02T15:04:05.000-0700"

	Maven ModuleType = "maven"
)

// BuildInfo is the publication record written after a publish run.
type BuildInfo struct {
	Name    string   `json:"name,omitempty"`
	Number  string   `json:"number,omitempty"`
	Agent   *Agent   `json:"agent,omitempty"`
	Modules []Module `json:"modules,omitempty"`
	Started string   `json:"started,omitempty"`
	VcsList []Vcs    `json:"vcs,omitempty"`
}

type Vcs struct {
	Url      string `json:"url,omitempty"`
	Revision string `json:"revision,omitempty"`
	Branch   string `json:"branch,omitempty"`
}

func New() *BuildInfo {
	return &BuildInfo{
		Agent:   &Agent{},
		Modules: make([]Module, 0),
	}
}

func (targetBuildInfo *BuildInfo) SetAgentName(agentName string) {
	targetBuildInfo.Agent.Name = agentName
}

func (targetBuildInfo *BuildInfo) SetAgentVersion(agentVersion string) {
	targetBuildInfo.Agent.Version = agentVersion
}

func (targetBuildInfo *BuildInfo) SetStarted(started time.Time) {
	targetBuildInfo.Started = started.Format(TimeFormat)
}

// Append the modules of the received build info to this build info.
// If the two build info instances contain modules with identical ids, these modules are merged.
// When merging the modules, the artifacts remain unique according to their checksum and deployment repository.
func (targetBuildInfo *BuildInfo) Append(buildInfo *BuildInfo) {
	for i, newModule := range buildInfo.Modules {
		exists := false
		for j := range targetBuildInfo.Modules {
			if newModule.Id == targetBuildInfo.Modules[j].Id {
				mergeArtifacts(&buildInfo.Modules[i].Artifacts, &targetBuildInfo.Modules[j].Artifacts)
				exists = true
				break
			}
		}
		if !exists {
			targetBuildInfo.Modules = append(targetBuildInfo.Modules, newModule)
		}
	}
}

// AddModule adds a module, merging it into an existing module with the same id.
func (targetBuildInfo *BuildInfo) AddModule(module Module) {
	targetBuildInfo.Append(&BuildInfo{Modules: []Module{module}})
}

func (targetBuildInfo *BuildInfo) ToCycloneDxBom() (*cdx.BOM, error) {
	var components []cdx.Component
	for _, module := range targetBuildInfo.Modules {
		comp, err := packageIdToCycloneDxComponent(module.Id)
		if err != nil {
			return nil, err
		}
		comp.BOMRef = module.Id
		comp.Type = cdx.ComponentTypeLibrary
		comp.PackageURL = (Coordinates{GroupId: comp.Group, ArtifactId: comp.Name, Version: comp.Version}).PackageUrl()
		if primary := module.primaryArtifact(); primary != nil && !primary.Checksum.IsEmpty() {
			hashes := checksumToCycloneDxHashes(primary.Checksum)
			comp.Hashes = &hashes
		}
		components = append(components, *comp)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].BOMRef < components[j].BOMRef
	})

	bom := cdx.NewBOM()
	bom.Components = &components
	return bom, nil
}

func checksumToCycloneDxHashes(checksum Checksum) []cdx.Hash {
	var hashes []cdx.Hash
	if checksum.Sha512 != "" {
		hashes = append(hashes, cdx.Hash{Algorithm: cdx.HashAlgoSHA512, Value: checksum.Sha512})
	}
	if checksum.Sha256 != "" {
		hashes = append(hashes, cdx.Hash{Algorithm: cdx.HashAlgoSHA256, Value: checksum.Sha256})
	}
	if checksum.Sha1 != "" {
		hashes = append(hashes, cdx.Hash{Algorithm: cdx.HashAlgoSHA1, Value: checksum.Sha1})
	}
	if checksum.Md5 != "" {
		hashes = append(hashes, cdx.Hash{Algorithm: cdx.HashAlgoMD5, Value: checksum.Md5})
	}
	return hashes
}

func packageIdToCycloneDxComponent(packageId string) (*cdx.Component, error) {
	comp := &cdx.Component{}
	packageIdParts := strings.Split(packageId, ":")
	switch len(packageIdParts) {
	case 1:
		comp.Name = packageIdParts[0]
	case 2:
		comp.Name = packageIdParts[0]
		comp.Version = packageIdParts[1]
	case 3:
		comp.Group = packageIdParts[0]
		comp.Name = packageIdParts[1]
		comp.Version = packageIdParts[2]
	default:
		return nil, errors.New("invalid package identifier: " + packageId)
	}
	return comp, nil
}

func mergeArtifacts(mergeArtifacts *[]Artifact, intoArtifacts *[]Artifact) {
	for _, mergeArtifact := range *mergeArtifacts {
		exists := false
		for _, artifact := range *intoArtifacts {
			if mergeArtifact.Sha1 == artifact.Sha1 && mergeArtifact.OriginalDeploymentRepo == artifact.OriginalDeploymentRepo {
				exists = true
				break
			}
		}
		if !exists {
			*intoArtifacts = append(*intoArtifacts, mergeArtifact)
		}
	}
}

type Agent struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type Module struct {
	Type      ModuleType `json:"type,omitempty"`
	Id        string     `json:"id,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

func (m *Module) primaryArtifact() *Artifact {
	parts := strings.Split(m.Id, ":")
	if len(parts) != 3 {
		return nil
	}
	prefix := parts[1] + "-" + parts[2] + "."
	for i := range m.Artifacts {
		if strings.HasPrefix(m.Artifacts[i].Name, prefix) && m.Artifacts[i].Type != PomExtension {
			return &m.Artifacts[i]
		}
	}
	return nil
}

type Artifact struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Path string `json:"path,omitempty"`
	// The target repository to which the artifact was deployed to.
	OriginalDeploymentRepo string `json:"originalDeploymentRepo,omitempty"`
	Checksum
}

type Checksum struct {
	Sha1   string `json:"sha1,omitempty"`
	Md5    string `json:"md5,omitempty"`
	Sha256 string `json:"sha256,omitempty"`
	Sha512 string `json:"sha512,omitempty"`
}

func (c *Checksum) IsEmpty() bool {
	return c.Md5 == "" && c.Sha1 == "" && c.Sha256 == "" && c.Sha512 == ""
}
