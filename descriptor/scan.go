package descriptor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/log"
)

// Files with these suffixes are produced while publishing and are never picked up as build outputs.
var generatedSuffixes = []string{".asc", ".md5", ".sha1", ".sha256", ".sha512"}

// BuildOutput is a local file produced by the build, to be published under the given classifier and extension.
type BuildOutput struct {
	Classifier string `json:"classifier,omitempty"`
	Extension  string `json:"extension"`
	Path       string `json:"path"`
}

// ScanOutputs looks for artifactId-version[-classifier].extension files in dir.
func ScanOutputs(dir string, coordinates entities.Coordinates) ([]BuildOutput, error) {
	exists, err := utils.IsDirExists(dir, true)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, utils.NewDescriptorError(coordinates.String(), "build output directory '%s' does not exist", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := coordinates.ArtifactId + "-" + coordinates.Version
	var outputs []BuildOutput
	for _, entry := range entries {
		if entry.IsDir() || isGenerated(entry.Name()) {
			continue
		}
		output, ok := parseOutputName(entry.Name(), prefix)
		if !ok {
			log.Debug("Skipping file that does not match " + prefix + ": " + entry.Name())
			continue
		}
		output.Path = filepath.Join(dir, entry.Name())
		outputs = append(outputs, output)
	}
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].Classifier < outputs[j].Classifier
	})
	log.Debug("Found", len(outputs), "build outputs in", dir)
	return outputs, nil
}

func parseOutputName(fileName, prefix string) (BuildOutput, bool) {
	rest, found := strings.CutPrefix(fileName, prefix)
	if !found || rest == "" {
		return BuildOutput{}, false
	}
	// A digit right after the prefix means the file belongs to a longer version, such as 1.2.0 for version 1.2.
	switch rest[0] {
	case '.':
		extension := rest[1:]
		if extension == "" || startsWithDigit(extension) {
			return BuildOutput{}, false
		}
		return BuildOutput{Extension: extension}, true
	case '-':
		classifier, extension, ok := strings.Cut(rest[1:], ".")
		if !ok || classifier == "" || extension == "" || startsWithDigit(classifier) || startsWithDigit(extension) {
			return BuildOutput{}, false
		}
		return BuildOutput{Classifier: classifier, Extension: extension}, true
	}
	return BuildOutput{}, false
}

func startsWithDigit(value string) bool {
	return value != "" && value[0] >= '0' && value[0] <= '9'
}

func isGenerated(fileName string) bool {
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(fileName, suffix) {
			return true
		}
	}
	return false
}
