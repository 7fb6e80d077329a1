package descriptor

import (
	"bytes"
	"os"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/crypto"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

const (
	SourcesClassifier = "sources"
	JavadocClassifier = "javadoc"
	defaultPackaging  = "jar"
)

// Builder assembles an ArtifactDescriptor from local build outputs.
// It only reads local files and never touches the network.
type Builder struct {
	coordinates              entities.Coordinates
	packaging                string
	pomSettings              *PomSettings
	signer                   *Signer
	sbom                     bool
	requireSourcesAndJavadoc bool
}

func NewBuilder(coordinates entities.Coordinates) *Builder {
	return &Builder{coordinates: coordinates}
}

func (b *Builder) SetPackaging(packaging string) *Builder {
	b.packaging = packaging
	return b
}

// SetPomSettings enables POM generation. Without it, the build outputs must contain a POM.
func (b *Builder) SetPomSettings(settings PomSettings) *Builder {
	b.pomSettings = &settings
	return b
}

func (b *Builder) SetSigner(signer *Signer) *Builder {
	b.signer = signer
	return b
}

func (b *Builder) SetSbom(sbom bool) *Builder {
	b.sbom = sbom
	return b
}

// SetRequireSourcesAndJavadoc makes the sources and javadoc jars mandatory, as Maven Central requires.
func (b *Builder) SetRequireSourcesAndJavadoc(require bool) *Builder {
	b.requireSourcesAndJavadoc = require
	return b
}

// Build creates the descriptor. It fails with a DescriptorError if the coordinates are incomplete,
// a (classifier, extension) pair repeats, or the primary artifact or POM is missing.
func (b *Builder) Build(outputs []BuildOutput) (*entities.ArtifactDescriptor, error) {
	id := b.coordinates.String()
	if !b.coordinates.IsComplete() {
		return nil, utils.NewDescriptorError(id, "group, artifact and version are all required")
	}

	keys := utils.NewStringSet()
	var primary, pom *entities.ArtifactFile
	var classified []entities.ArtifactFile
	for _, output := range outputs {
		if output.Extension == "" {
			return nil, utils.NewDescriptorError(id, "build output '%s' has no extension", output.Path)
		}
		artifactFile, err := newFileArtifact(id, output)
		if err != nil {
			return nil, err
		}
		if !keys.Add(artifactFile.Key()) {
			return nil, utils.NewDescriptorError(id, "classifier '%s' with extension '%s' appears more than once", output.Classifier, output.Extension)
		}
		switch {
		case artifactFile.IsPom() && artifactFile.Classifier == "":
			pom = artifactFile
		case artifactFile.IsPrimary():
			if primary != nil {
				return nil, utils.NewDescriptorError(id, "more than one primary artifact: '%s' and '%s'", primary.Path, artifactFile.Path)
			}
			primary = artifactFile
		default:
			classified = append(classified, *artifactFile)
		}
	}
	if primary == nil {
		return nil, utils.NewDescriptorError(id, "missing primary artifact")
	}
	if b.requireSourcesAndJavadoc {
		for _, classifier := range []string{SourcesClassifier, JavadocClassifier} {
			if !keys.Exists(classifier + ":jar") {
				return nil, utils.NewDescriptorError(id, "missing %s jar", classifier)
			}
		}
	}

	descriptor := &entities.ArtifactDescriptor{Coordinates: b.coordinates, Packaging: b.getPackaging(primary)}
	pom, err := b.resolvePom(descriptor, pom)
	if err != nil {
		return nil, err
	}
	descriptor.Artifacts = append([]entities.ArtifactFile{*primary, *pom}, classified...)

	if b.sbom {
		if err = b.addSbom(descriptor); err != nil {
			return nil, err
		}
	}
	if b.signer != nil {
		if err = b.addSignatures(descriptor); err != nil {
			return nil, err
		}
	}
	log.Debug("Built descriptor", id, "with", len(descriptor.Artifacts), "files")
	return descriptor, nil
}

func (b *Builder) getPackaging(primary *entities.ArtifactFile) string {
	if b.packaging != "" {
		return b.packaging
	}
	if primary.Extension != "" {
		return primary.Extension
	}
	return defaultPackaging
}

// resolvePom validates a provided POM against the coordinates, or generates one.
func (b *Builder) resolvePom(descriptor *entities.ArtifactDescriptor, provided *entities.ArtifactFile) (*entities.ArtifactFile, error) {
	id := descriptor.Coordinates.String()
	if provided != nil {
		content, err := os.ReadFile(provided.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read POM")
		}
		pom, err := entities.UnmarshalPom(content)
		if err != nil {
			return nil, utils.NewDescriptorError(id, "failed to parse POM '%s': %s", provided.Path, err.Error())
		}
		if pom.Coordinates() != descriptor.Coordinates {
			return nil, utils.NewDescriptorError(id, "POM '%s' declares coordinates '%s'", provided.Path, pom.Coordinates().String())
		}
		descriptor.Pom = pom
		return provided, nil
	}
	if b.pomSettings == nil {
		return nil, utils.NewDescriptorError(id, "missing POM")
	}
	pom, err := GeneratePom(descriptor.Coordinates, descriptor.Packaging, *b.pomSettings)
	if err != nil {
		return nil, err
	}
	content, err := pom.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal POM")
	}
	descriptor.Pom = pom
	return newContentArtifact("", entities.PomExtension, content)
}

func (b *Builder) addSbom(descriptor *entities.ArtifactDescriptor) error {
	bom, err := ToCycloneDxBom(descriptor)
	if err != nil {
		return err
	}
	content, err := EncodeCycloneDx(bom, cdx.BOMFileFormatJSON)
	if err != nil {
		return errors.Wrap(err, "failed to encode CycloneDX document")
	}
	sbomFile, err := newContentArtifact(SbomClassifier, SbomExtension, content)
	if err != nil {
		return err
	}
	descriptor.Artifacts = append(descriptor.Artifacts, *sbomFile)
	return nil
}

func (b *Builder) addSignatures(descriptor *entities.ArtifactDescriptor) error {
	var signatures []entities.ArtifactFile
	for i := range descriptor.Artifacts {
		artifactFile := &descriptor.Artifacts[i]
		signature, err := signArtifact(b.signer, artifactFile)
		if err != nil {
			return errors.Wrapf(err, "failed to sign '%s'", descriptor.RemotePath(artifactFile))
		}
		signatureFile, err := newContentArtifact(artifactFile.Classifier, artifactFile.Extension+"."+entities.SignatureExtension, signature)
		if err != nil {
			return err
		}
		signatures = append(signatures, *signatureFile)
	}
	descriptor.Artifacts = append(descriptor.Artifacts, signatures...)
	return nil
}

func signArtifact(signer *Signer, artifactFile *entities.ArtifactFile) (signature []byte, err error) {
	reader, err := artifactFile.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		e := reader.Close()
		if err == nil {
			err = e
		}
	}()
	return signer.Sign(reader)
}

func newFileArtifact(id string, output BuildOutput) (*entities.ArtifactFile, error) {
	exists, err := utils.IsFileExists(output.Path, true)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, utils.NewDescriptorError(id, "build output '%s' does not exist", output.Path)
	}
	fileDetails, err := crypto.GetFileDetails(output.Path, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to calculate checksums of '%s'", output.Path)
	}
	sha512, err := utils.GetFileChecksums(output.Path, utils.SHA512)
	if err != nil {
		return nil, err
	}
	return &entities.ArtifactFile{
		Classifier: output.Classifier,
		Extension:  output.Extension,
		Path:       output.Path,
		Size:       fileDetails.Size,
		Checksum: entities.Checksum{
			Sha1:   fileDetails.Checksum.Sha1,
			Md5:    fileDetails.Checksum.Md5,
			Sha256: fileDetails.Checksum.Sha256,
			Sha512: sha512[utils.SHA512],
		},
	}, nil
}

func newContentArtifact(classifier, extension string, content []byte) (*entities.ArtifactFile, error) {
	checksums, err := utils.CalcChecksums(bytes.NewReader(content), utils.SidecarAlgorithms...)
	if err != nil {
		return nil, err
	}
	return &entities.ArtifactFile{
		Classifier: classifier,
		Extension:  extension,
		Content:    content,
		Size:       int64(len(content)),
		Checksum: entities.Checksum{
			Sha1:   checksums[utils.SHA1],
			Md5:    checksums[utils.MD5],
			Sha256: checksums[utils.SHA256],
			Sha512: checksums[utils.SHA512],
		},
	}, nil
}
