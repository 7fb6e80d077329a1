package entities

import (
	"fmt"
	"path"
	"strings"
)

const snapshotSuffix = "-SNAPSHOT"

// Coordinates identify a publishable unit in a Maven repository.
type Coordinates struct {
	GroupId    string `json:"groupId"`
	ArtifactId string `json:"artifactId"`
	Version    string `json:"version"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%s:%s:%s", c.GroupId, c.ArtifactId, c.Version)
}

func (c Coordinates) IsComplete() bool {
	return c.GroupId != "" && c.ArtifactId != "" && c.Version != ""
}

func (c Coordinates) IsSnapshot() bool {
	return strings.HasSuffix(strings.ToUpper(c.Version), snapshotSuffix)
}

// BaseDir returns the maven2 layout directory, e.g. org/hypertrace/core/lib/1.0.0.
func (c Coordinates) BaseDir() string {
	return path.Join(strings.ReplaceAll(c.GroupId, ".", "/"), c.ArtifactId, c.Version)
}

// FileName returns artifactId-version[-classifier].extension.
func (c Coordinates) FileName(classifier, extension string) string {
	name := c.ArtifactId + "-" + c.Version
	if classifier != "" {
		name += "-" + classifier
	}
	return name + "." + extension
}

// PackageUrl returns the purl of these coordinates, as used in CycloneDX documents.
func (c Coordinates) PackageUrl() string {
	return fmt.Sprintf("pkg:maven/%s/%s@%s", c.GroupId, c.ArtifactId, c.Version)
}
