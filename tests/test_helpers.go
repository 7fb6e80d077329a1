package tests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hypertrace/artifact-publisher/descriptor"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var TestCoordinates = entities.Coordinates{GroupId: "org.hypertrace.core", ArtifactId: "lib", Version: "1.2.0"}

// CreateBuildOutputs writes a primary jar, plus a file for every classifier, into a temp dir.
// Return the dir location.
func CreateBuildOutputs(t *testing.T, coordinates entities.Coordinates, classifiers ...string) string {
	dir := t.TempDir()
	for _, classifier := range append([]string{""}, classifiers...) {
		name := coordinates.FileName(classifier, "jar")
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0644))
	}
	return dir
}

// CreateTestDescriptor builds a descriptor with a generated POM from the outputs written by CreateBuildOutputs.
func CreateTestDescriptor(t *testing.T, coordinates entities.Coordinates, classifiers ...string) *entities.ArtifactDescriptor {
	outputs, err := descriptor.ScanOutputs(CreateBuildOutputs(t, coordinates, classifiers...), coordinates)
	require.NoError(t, err)
	settings := descriptor.DefaultPomSettings()
	settings.License = entities.Apache2_0
	settings.RepoName = coordinates.ArtifactId
	result, err := descriptor.NewBuilder(coordinates).SetPomSettings(settings).Build(outputs)
	require.NoError(t, err)
	return result
}

// ExpectedUploads returns the number of uploads the descriptor needs: every file, plus four checksum sidecars for every non-signature file.
func ExpectedUploads(d *entities.ArtifactDescriptor) int {
	total := 0
	for i := range d.Artifacts {
		total++
		if !d.Artifacts[i].IsSignature() {
			total += 4
		}
	}
	return total
}

func GetPublishResults(t *testing.T, filePath string) entities.PublishResults {
	data, err := os.ReadFile(filePath)
	assert.NoError(t, err)
	var results entities.PublishResults
	assert.NoError(t, json.Unmarshal(data, &results))
	return results
}
