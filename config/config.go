package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schema []byte

type Format string

const (
	Toml Format = "toml"
	Yaml Format = "yaml"
)

// File is the publish configuration, read from publish.toml or publish.yaml.
type File struct {
	Project ProjectConfig  `toml:"project" yaml:"project"`
	Outputs OutputsConfig  `toml:"outputs" yaml:"outputs"`
	Signing SigningConfig  `toml:"signing" yaml:"signing"`
	Publish PublishConfig  `toml:"publish" yaml:"publish"`
	Targets []TargetConfig `toml:"targets" yaml:"targets"`

	// baseDir resolves the relative paths of the file.
	baseDir string
}

type ProjectConfig struct {
	Group           string                  `toml:"group" yaml:"group"`
	Artifact        string                  `toml:"artifact" yaml:"artifact"`
	Version         string                  `toml:"version" yaml:"version"`
	Packaging       string                  `toml:"packaging" yaml:"packaging"`
	Description     string                  `toml:"description" yaml:"description"`
	Url             string                  `toml:"url" yaml:"url"`
	License         string                  `toml:"license" yaml:"license"`
	ScmOrganization string                  `toml:"scmOrganization" yaml:"scmOrganization"`
	RepoName        string                  `toml:"repoName" yaml:"repoName"`
	Developers      []entities.PomDeveloper `toml:"developers" yaml:"developers"`
}

type OutputsConfig struct {
	// Dir is scanned for artifactId-version[-classifier].extension files.
	Dir   string       `toml:"dir" yaml:"dir"`
	Files []FileConfig `toml:"files" yaml:"files"`
	// Pom is a POM file to publish instead of generating one.
	Pom                      string `toml:"pom" yaml:"pom"`
	RequireSourcesAndJavadoc bool   `toml:"requireSourcesAndJavadoc" yaml:"requireSourcesAndJavadoc"`
	Sbom                     bool   `toml:"sbom" yaml:"sbom"`
}

type FileConfig struct {
	Classifier string `toml:"classifier" yaml:"classifier"`
	Extension  string `toml:"extension" yaml:"extension"`
	Path       string `toml:"path" yaml:"path"`
}

// SigningConfig locates the in-memory PGP key. The key and passphrase are read from credential properties,
// the key may also be read from a file.
type SigningConfig struct {
	KeyFile            string `toml:"keyFile" yaml:"keyFile"`
	KeyProperty        string `toml:"keyProperty" yaml:"keyProperty"`
	PassphraseProperty string `toml:"passphraseProperty" yaml:"passphraseProperty"`
	KeyIdProperty      string `toml:"keyIdProperty" yaml:"keyIdProperty"`
}

type PublishConfig struct {
	Targets           []string `toml:"targets" yaml:"targets"`
	Parallelism       int      `toml:"parallelism" yaml:"parallelism"`
	AutoRelease       bool     `toml:"autoRelease" yaml:"autoRelease"`
	MaxAttempts       int      `toml:"maxAttempts" yaml:"maxAttempts"`
	MinBackoff        string   `toml:"minBackoff" yaml:"minBackoff"`
	MaxBackoff        string   `toml:"maxBackoff" yaml:"maxBackoff"`
	DropTimeout       string   `toml:"dropTimeout" yaml:"dropTimeout"`
	Timeout           string   `toml:"timeout" yaml:"timeout"`
	PollInterval      string   `toml:"pollInterval" yaml:"pollInterval"`
	TransitionTimeout string   `toml:"transitionTimeout" yaml:"transitionTimeout"`
}

type TargetConfig struct {
	Name             string `toml:"name" yaml:"name"`
	Preset           string `toml:"preset" yaml:"preset"`
	Url              string `toml:"url" yaml:"url"`
	SnapshotUrl      string `toml:"snapshotUrl" yaml:"snapshotUrl"`
	Kind             string `toml:"kind" yaml:"kind"`
	UsernameProperty string `toml:"usernameProperty" yaml:"usernameProperty"`
	PasswordProperty string `toml:"passwordProperty" yaml:"passwordProperty"`
	StagingProfile   string `toml:"stagingProfile" yaml:"stagingProfile"`
}

// Load reads and validates a configuration file. The format is chosen by the file extension.
func Load(path string) (*File, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading configuration file '%s'", path)
	}
	file, err := Parse(content, format)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid configuration file '%s'", path)
	}
	file.baseDir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Parse decodes and validates configuration content. Relative paths resolve against the working directory.
func Parse(content []byte, format Format) (*File, error) {
	raw := map[string]interface{}{}
	file := &File{}
	switch format {
	case Toml:
		if _, err := toml.Decode(string(content), &raw); err != nil {
			return nil, err
		}
		if _, err := toml.Decode(string(content), file); err != nil {
			return nil, err
		}
	case Yaml:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(content, file); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format '%s'", format)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}
	if _, err := file.durations(); err != nil {
		return nil, err
	}
	return file, nil
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return Toml, nil
	case ".yaml", ".yml":
		return Yaml, nil
	}
	return "", &utils.ConfigurationError{Property: path, Message: "the configuration file must be a .toml, .yaml or .yml file"}
}

// validate checks the decoded document against the embedded JSON schema.
func validate(raw map[string]interface{}) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.Wrap(err, "failed validating the configuration")
	}
	if result.Valid() {
		return nil
	}
	var messages []string
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}
	return &utils.ConfigurationError{Message: "invalid configuration: " + strings.Join(messages, "; ")}
}

// resolvePath makes a configured path absolute, relative to the directory of the configuration file.
func (f *File) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || f.baseDir == "" {
		return path
	}
	return filepath.Join(f.baseDir, path)
}

type durations struct {
	minBackoff, maxBackoff, dropTimeout, timeout, pollInterval, transitionTimeout time.Duration
}

func (f *File) durations() (durations, error) {
	var d durations
	for _, field := range []struct {
		name   string
		value  string
		target *time.Duration
	}{
		{"publish.minBackoff", f.Publish.MinBackoff, &d.minBackoff},
		{"publish.maxBackoff", f.Publish.MaxBackoff, &d.maxBackoff},
		{"publish.dropTimeout", f.Publish.DropTimeout, &d.dropTimeout},
		{"publish.timeout", f.Publish.Timeout, &d.timeout},
		{"publish.pollInterval", f.Publish.PollInterval, &d.pollInterval},
		{"publish.transitionTimeout", f.Publish.TransitionTimeout, &d.transitionTimeout},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return d, &utils.ConfigurationError{Property: field.name, Message: err.Error()}
		}
		*field.target = parsed
	}
	return d, nil
}
