package config

import (
	"fmt"
	"os"

	"github.com/hypertrace/artifact-publisher/descriptor"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/publish"
	"github.com/hypertrace/artifact-publisher/repository"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/hypertrace/artifact-publisher/utils/cienv"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	MavenCentralPreset = "maven-central"
	MavenLocalPreset   = "maven-local"
	ArtifactoryPreset  = "artifactory"

	MavenCentralUrl         = "https://s01.oss.sonatype.org/service/local/"
	MavenCentralSnapshotUrl = "https://s01.oss.sonatype.org/content/repositories/snapshots/"
	OssrhUsernameProperty   = "ossrhUsername"
	OssrhPasswordProperty   = "ossrhPassword"

	// Artifactory publications go to the gradle repository under the context URL.
	ArtifactoryContextUrlProperty = "artifactory_contextUrl"
	ArtifactoryUserProperty       = "artifactory_user"
	ArtifactoryPasswordProperty   = "artifactory_password"
	ArtifactoryRepositoryKey      = "gradle"

	// Property names of the in-memory signing key, as set up for Maven Central publications.
	DefaultSigningKeyProperty        = "signingKey"
	DefaultSigningPassphraseProperty = "signingPassword"
	DefaultSigningKeyIdProperty      = "signingKeyId"
)

func (f *File) Coordinates() entities.Coordinates {
	return entities.Coordinates{GroupId: f.Project.Group, ArtifactId: f.Project.Artifact, Version: f.Project.Version}
}

// RepositoryTargets applies the presets and returns the configured targets, in order.
func (f *File) RepositoryTargets() ([]repository.RepositoryTarget, error) {
	var targets []repository.RepositoryTarget
	for _, targetConfig := range f.Targets {
		target, err := f.repositoryTarget(targetConfig)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (f *File) repositoryTarget(targetConfig TargetConfig) (repository.RepositoryTarget, error) {
	target := repository.RepositoryTarget{Name: targetConfig.Name}
	switch targetConfig.Preset {
	case MavenCentralPreset:
		target.Url = MavenCentralUrl
		target.SnapshotUrl = MavenCentralSnapshotUrl
		target.Kind = repository.Staging
		target.Credentials = repository.CredentialRef{UsernameProperty: OssrhUsernameProperty, PasswordProperty: OssrhPasswordProperty}
	case MavenLocalPreset:
		home, err := os.UserHomeDir()
		if err != nil {
			return target, errors.Wrap(err, "failed locating the local Maven repository")
		}
		target.Url = home + string(os.PathSeparator) + ".m2" + string(os.PathSeparator) + "repository"
		target.Kind = repository.Local
	case ArtifactoryPreset:
		target.UrlProperty = ArtifactoryContextUrlProperty
		target.UrlPath = ArtifactoryRepositoryKey
		target.Kind = repository.Direct
		target.Credentials = repository.CredentialRef{UsernameProperty: ArtifactoryUserProperty, PasswordProperty: ArtifactoryPasswordProperty}
	case "":
	default:
		return target, &utils.ConfigurationError{Property: targetConfig.Name + ".preset", Message: fmt.Sprintf("unknown preset '%s'", targetConfig.Preset)}
	}
	if targetConfig.Url != "" {
		target.Url = targetConfig.Url
		target.UrlProperty, target.UrlPath = "", ""
	}
	if targetConfig.SnapshotUrl != "" {
		target.SnapshotUrl = targetConfig.SnapshotUrl
	}
	if targetConfig.Kind != "" || targetConfig.Preset == "" {
		kind, err := repository.ParseProtocolKind(targetConfig.Kind)
		if err != nil {
			return target, &utils.ConfigurationError{Property: targetConfig.Name + ".kind", Message: err.Error()}
		}
		target.Kind = kind
	}
	if target.Kind == repository.Local {
		target.Url = f.resolvePath(target.Url)
	}
	if targetConfig.UsernameProperty != "" {
		target.Credentials.UsernameProperty = targetConfig.UsernameProperty
	}
	if targetConfig.PasswordProperty != "" {
		target.Credentials.PasswordProperty = targetConfig.PasswordProperty
	}
	target.StagingProfile = targetConfig.StagingProfile
	return target, nil
}

// Registry registers every configured target.
func (f *File) Registry() (*repository.Registry, error) {
	targets, err := f.RepositoryTargets()
	if err != nil {
		return nil, err
	}
	registry := repository.NewRegistry()
	for _, target := range targets {
		if err = registry.Register(target); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// TargetNames returns the targets to publish to when none are requested: the configured defaults, or every target.
func (f *File) TargetNames() []string {
	if len(f.Publish.Targets) > 0 {
		return f.Publish.Targets
	}
	var names []string
	for _, target := range f.Targets {
		names = append(names, target.Name)
	}
	return names
}

func (f *File) PomSettings() (descriptor.PomSettings, error) {
	settings := descriptor.DefaultPomSettings()
	settings.Description = f.Project.Description
	if f.Project.Url != "" {
		settings.Url = f.Project.Url
	}
	if f.Project.License != "" {
		license, err := entities.ParseLicense(f.Project.License)
		if err != nil {
			return settings, &utils.ConfigurationError{Property: "project.license", Message: err.Error()}
		}
		settings.License = license
	}
	// In CI, the repository being built provides the SCM defaults.
	vcs := cienv.GetVcsInfo()
	if f.Project.ScmOrganization != "" {
		settings.ScmOrganization = f.Project.ScmOrganization
	} else if vcs.Org != "" {
		settings.ScmOrganization = vcs.Org
	}
	settings.RepoName = valueOr(f.Project.RepoName, vcs.Repo)
	if len(f.Project.Developers) > 0 {
		settings.Developers = f.Project.Developers
	}
	return settings, nil
}

// BuildOutputs lists the configured files, then the ones found in the outputs dir.
func (f *File) BuildOutputs() ([]descriptor.BuildOutput, error) {
	var outputs []descriptor.BuildOutput
	for _, file := range f.Outputs.Files {
		outputs = append(outputs, descriptor.BuildOutput{Classifier: file.Classifier, Extension: file.Extension, Path: f.resolvePath(file.Path)})
	}
	if f.Outputs.Pom != "" {
		outputs = append(outputs, descriptor.BuildOutput{Extension: entities.PomExtension, Path: f.resolvePath(f.Outputs.Pom)})
	}
	if f.Outputs.Dir != "" {
		scanned, err := descriptor.ScanOutputs(f.resolvePath(f.Outputs.Dir), f.Coordinates())
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, withoutDuplicates(outputs, scanned)...)
	}
	return outputs, nil
}

// withoutDuplicates drops the scanned outputs that were configured explicitly.
func withoutDuplicates(configured, scanned []descriptor.BuildOutput) []descriptor.BuildOutput {
	keys := utils.NewStringSet()
	for _, output := range configured {
		keys.Add(output.Classifier + ":" + output.Extension)
	}
	var result []descriptor.BuildOutput
	for _, output := range scanned {
		if !keys.Exists(output.Classifier + ":" + output.Extension) {
			result = append(result, output)
		}
	}
	return result
}

// Signer creates the PGP signer, or returns nil when no key is configured.
func (f *File) Signer(source repository.CredentialSource) (*descriptor.Signer, error) {
	keyProperty := valueOr(f.Signing.KeyProperty, DefaultSigningKeyProperty)
	var armoredKey string
	if f.Signing.KeyFile != "" {
		content, err := os.ReadFile(f.resolvePath(f.Signing.KeyFile))
		if err != nil {
			return nil, errors.Wrap(err, "failed reading the signing key")
		}
		armoredKey = string(content)
	} else if value, ok := source.Lookup(keyProperty); ok {
		armoredKey = value
	}
	if armoredKey == "" {
		return nil, nil
	}
	passphraseProperty := valueOr(f.Signing.PassphraseProperty, DefaultSigningPassphraseProperty)
	passphrase, ok := source.Lookup(passphraseProperty)
	if !ok {
		return nil, &utils.ConfigurationError{Property: passphraseProperty, Message: "a passphrase is required to sign with the configured key"}
	}
	keyId, _ := source.Lookup(valueOr(f.Signing.KeyIdProperty, DefaultSigningKeyIdProperty))
	return descriptor.NewSigner(armoredKey, passphrase, keyId)
}

// Descriptor builds the artifact descriptor of the configured project for the named targets.
// Publications to a maven-central target must carry sources and javadoc jars and be signed.
func (f *File) Descriptor(source repository.CredentialSource, targetNames []string) (*entities.ArtifactDescriptor, error) {
	settings, err := f.PomSettings()
	if err != nil {
		return nil, err
	}
	outputs, err := f.BuildOutputs()
	if err != nil {
		return nil, err
	}
	signer, err := f.Signer(source)
	if err != nil {
		return nil, err
	}
	mavenCentral := f.usesPreset(MavenCentralPreset, targetNames)
	if mavenCentral && signer == nil {
		return nil, &utils.ConfigurationError{
			Property: valueOr(f.Signing.KeyProperty, DefaultSigningKeyProperty),
			Message:  "publications to Maven Central must be signed, set signing.keyFile or the signing key property",
		}
	}
	builder := descriptor.NewBuilder(f.Coordinates()).
		SetPomSettings(settings).
		SetSigner(signer).
		SetSbom(f.Outputs.Sbom).
		SetRequireSourcesAndJavadoc(f.Outputs.RequireSourcesAndJavadoc || mavenCentral)
	if f.Project.Packaging != "" {
		builder.SetPackaging(f.Project.Packaging)
	}
	return builder.Build(outputs)
}

// usesPreset reports whether any of the named targets is configured with the preset.
func (f *File) usesPreset(preset string, targetNames []string) bool {
	for _, targetConfig := range f.Targets {
		if targetConfig.Preset == preset && slices.Contains(targetNames, targetConfig.Name) {
			return true
		}
	}
	return false
}

// PublishConfig returns the orchestrator configuration, defaults applied.
func (f *File) PublishConfig() publish.Config {
	config := publish.DefaultConfig()
	d, _ := f.durations()
	if f.Publish.Parallelism > 0 {
		config.Parallelism = f.Publish.Parallelism
	}
	config.AutoRelease = f.Publish.AutoRelease
	if f.Publish.MaxAttempts > 0 {
		config.Retry.MaxAttempts = f.Publish.MaxAttempts
	}
	if d.minBackoff > 0 {
		config.Retry.MinBackoff = d.minBackoff
	}
	if d.maxBackoff > 0 {
		config.Retry.MaxBackoff = d.maxBackoff
	}
	if d.dropTimeout > 0 {
		config.DropTimeout = d.dropTimeout
	}
	return config
}

func (f *File) ClientOptions() repository.ClientOptions {
	options := repository.DefaultClientOptions()
	d, _ := f.durations()
	if d.timeout > 0 {
		options.Timeout = d.timeout
	}
	if d.pollInterval > 0 {
		options.PollInterval = d.pollInterval
	}
	if d.transitionTimeout > 0 {
		options.TransitionTimeout = d.transitionTimeout
	}
	return options
}

func valueOr(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
