package entities

import (
	"bytes"
	"io"
	"os"
	"path"
	"strings"
)

const (
	PomExtension            = "pom"
	ModuleMetadataExtension = "module"
	SignatureExtension      = "asc"
)

// ArtifactFile is one (classifier, extension, file) tuple of a descriptor.
// The file is either a local path or an in-memory document such as a generated POM or a signature.
type ArtifactFile struct {
	Classifier string   `json:"classifier,omitempty"`
	Extension  string   `json:"extension"`
	Path       string   `json:"path,omitempty"`
	Content    []byte   `json:"-"`
	Size       int64    `json:"size"`
	Checksum   Checksum `json:"checksum"`
}

func (af *ArtifactFile) Open() (io.ReadCloser, error) {
	if af.Content != nil {
		return io.NopCloser(bytes.NewReader(af.Content)), nil
	}
	return os.Open(af.Path)
}

func (af *ArtifactFile) IsPom() bool {
	return af.Extension == PomExtension
}

func (af *ArtifactFile) IsSignature() bool {
	return strings.HasSuffix(af.Extension, "."+SignatureExtension) || af.Extension == SignatureExtension
}

// IsMetadata reports whether the file is a metadata document (POM or Gradle module metadata).
func (af *ArtifactFile) IsMetadata() bool {
	return af.Extension == PomExtension || af.Extension == ModuleMetadataExtension
}

// IsPrimary reports whether this is the main artifact of the descriptor: no classifier, no metadata, no signature.
func (af *ArtifactFile) IsPrimary() bool {
	return af.Classifier == "" && !af.IsMetadata() && !af.IsSignature()
}

func (af *ArtifactFile) Key() string {
	return af.Classifier + ":" + af.Extension
}

// ArtifactDescriptor is the logical unit of files and metadata published together under one coordinate.
type ArtifactDescriptor struct {
	Coordinates
	Packaging string         `json:"packaging"`
	Artifacts []ArtifactFile `json:"artifacts"`
	Pom       *Pom           `json:"-"`
}

func (d *ArtifactDescriptor) Primary() *ArtifactFile {
	for i := range d.Artifacts {
		if d.Artifacts[i].IsPrimary() {
			return &d.Artifacts[i]
		}
	}
	return nil
}

func (d *ArtifactDescriptor) PomFile() *ArtifactFile {
	for i := range d.Artifacts {
		if d.Artifacts[i].IsPom() && d.Artifacts[i].Classifier == "" {
			return &d.Artifacts[i]
		}
	}
	return nil
}

func (d *ArtifactDescriptor) Find(classifier, extension string) *ArtifactFile {
	for i := range d.Artifacts {
		if d.Artifacts[i].Classifier == classifier && d.Artifacts[i].Extension == extension {
			return &d.Artifacts[i]
		}
	}
	return nil
}

// RemotePath returns the path of the file relative to the repository root, in the maven2 layout.
func (d *ArtifactDescriptor) RemotePath(af *ArtifactFile) string {
	return path.Join(d.BaseDir(), d.FileName(af.Classifier, af.Extension))
}

// ToModule converts the descriptor into a build-info module, recording the repository it was deployed to.
func (d *ArtifactDescriptor) ToModule(repository string) Module {
	module := Module{Type: Maven, Id: d.Coordinates.String()}
	for _, af := range d.Artifacts {
		if af.IsSignature() {
			continue
		}
		module.Artifacts = append(module.Artifacts, Artifact{
			Name:                   d.FileName(af.Classifier, af.Extension),
			Type:                   af.Extension,
			Path:                   d.RemotePath(&af),
			OriginalDeploymentRepo: repository,
			Checksum:               af.Checksum,
		})
	}
	return module
}
