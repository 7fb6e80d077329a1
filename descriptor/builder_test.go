package descriptor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCoordinates = entities.Coordinates{GroupId: "org.hypertrace.core", ArtifactId: "lib", Version: "1.2.0"}

func testPomSettings() PomSettings {
	settings := DefaultPomSettings()
	settings.License = entities.Apache2_0
	settings.RepoName = "lib"
	settings.Description = "A library"
	return settings
}

// createOutputs writes the named files into a temp dir and returns it.
func createOutputs(t *testing.T, names ...string) string {
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0644))
	}
	return dir
}

func TestBuildGeneratesPom(t *testing.T) {
	dir := createOutputs(t, "lib-1.2.0.jar", "lib-1.2.0-sources.jar", "lib-1.2.0-javadoc.jar")
	outputs, err := ScanOutputs(dir, testCoordinates)
	require.NoError(t, err)

	descriptor, err := NewBuilder(testCoordinates).
		SetPomSettings(testPomSettings()).
		SetRequireSourcesAndJavadoc(true).
		Build(outputs)
	require.NoError(t, err)

	assert.Equal(t, "jar", descriptor.Packaging)
	require.Len(t, descriptor.Artifacts, 4)
	assert.True(t, descriptor.Artifacts[0].IsPrimary())
	assert.True(t, descriptor.Artifacts[1].IsPom())
	assert.NotEmpty(t, descriptor.Primary().Checksum.Sha1)
	assert.NotEmpty(t, descriptor.Primary().Checksum.Sha512)
	assert.Equal(t, int64(len("content of lib-1.2.0.jar")), descriptor.Primary().Size)

	pomFile := descriptor.PomFile()
	require.NotNil(t, pomFile)
	assert.Contains(t, string(pomFile.Content), "<name>org.hypertrace.core:lib</name>")
	assert.Contains(t, string(pomFile.Content), "<connection>scm:git:git://github.com/hypertrace/lib.git</connection>")
	assert.Equal(t, "A library", descriptor.Pom.Description)
	assert.NotEmpty(t, pomFile.Checksum.Md5)
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		name        string
		coordinates entities.Coordinates
		files       []string
		settings    *PomSettings
		requireDocs bool
		expected    string
	}{
		{name: "incomplete coordinates", coordinates: entities.Coordinates{GroupId: "g"}, files: []string{"lib-1.2.0.jar"}, expected: "group, artifact and version are all required"},
		{name: "missing primary", files: []string{"lib-1.2.0-sources.jar"}, expected: "missing primary artifact"},
		{name: "missing pom", files: []string{"lib-1.2.0.jar"}, expected: "missing POM"},
		{name: "missing sources", files: []string{"lib-1.2.0.jar", "lib-1.2.0-javadoc.jar"}, requireDocs: true, expected: "missing sources jar"},
		{name: "two primaries", files: []string{"lib-1.2.0.jar", "lib-1.2.0.war"}, expected: "more than one primary artifact"},
		{name: "missing license", files: []string{"lib-1.2.0.jar"}, settings: &PomSettings{RepoName: "lib"}, expected: "a license type must be specified"},
		{name: "missing repo name", files: []string{"lib-1.2.0.jar"}, settings: &PomSettings{License: entities.AGPLv3}, expected: "a repository name must be specified"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			coordinates := testCase.coordinates
			if coordinates == (entities.Coordinates{}) {
				coordinates = testCoordinates
			}
			dir := createOutputs(t, testCase.files...)
			outputs, err := ScanOutputs(dir, testCoordinates)
			require.NoError(t, err)
			builder := NewBuilder(coordinates).SetRequireSourcesAndJavadoc(testCase.requireDocs)
			if testCase.settings != nil {
				builder.SetPomSettings(*testCase.settings)
			}
			_, err = builder.Build(outputs)
			var descriptorErr *utils.DescriptorError
			require.True(t, errors.As(err, &descriptorErr), "expected a DescriptorError, got %v", err)
			assert.Contains(t, descriptorErr.Message, testCase.expected)
		})
	}
}

func TestBuildRejectsDuplicateClassifier(t *testing.T) {
	dir := createOutputs(t, "lib-1.2.0.jar", "copy.jar")
	outputs := []BuildOutput{
		{Extension: "jar", Path: filepath.Join(dir, "lib-1.2.0.jar")},
		{Extension: "jar", Path: filepath.Join(dir, "copy.jar")},
	}
	_, err := NewBuilder(testCoordinates).SetPomSettings(testPomSettings()).Build(outputs)
	var descriptorErr *utils.DescriptorError
	require.ErrorAs(t, err, &descriptorErr)
	assert.Contains(t, descriptorErr.Message, "appears more than once")
}

func TestBuildMissingFile(t *testing.T) {
	outputs := []BuildOutput{{Extension: "jar", Path: filepath.Join(t.TempDir(), "missing.jar")}}
	_, err := NewBuilder(testCoordinates).SetPomSettings(testPomSettings()).Build(outputs)
	var descriptorErr *utils.DescriptorError
	assert.ErrorAs(t, err, &descriptorErr)
}

func TestBuildWithProvidedPom(t *testing.T) {
	dir := createOutputs(t, "lib-1.2.0.jar")
	pom := entities.NewPom(testCoordinates, "jar")
	content, err := pom.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib-1.2.0.pom"), content, 0644))
	outputs, err := ScanOutputs(dir, testCoordinates)
	require.NoError(t, err)

	descriptor, err := NewBuilder(testCoordinates).Build(outputs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib-1.2.0.pom"), descriptor.PomFile().Path)

	otherVersion := testCoordinates
	otherVersion.Version = "1.3.0"
	require.NoError(t, os.Rename(filepath.Join(dir, "lib-1.2.0.jar"), filepath.Join(dir, "lib-1.3.0.jar")))
	outputs = []BuildOutput{{Extension: "jar", Path: filepath.Join(dir, "lib-1.3.0.jar")}, {Extension: "pom", Path: filepath.Join(dir, "lib-1.2.0.pom")}}
	_, err = NewBuilder(otherVersion).Build(outputs)
	var descriptorErr *utils.DescriptorError
	require.ErrorAs(t, err, &descriptorErr)
	assert.Contains(t, descriptorErr.Message, "declares coordinates")
}

func TestBuildWithSbomAndSignatures(t *testing.T) {
	armoredKey, keyRing := generateKey(t)
	signer, err := NewSigner(armoredKey, "", "")
	require.NoError(t, err)

	dir := createOutputs(t, "lib-1.2.0.jar")
	outputs, err := ScanOutputs(dir, testCoordinates)
	require.NoError(t, err)
	descriptor, err := NewBuilder(testCoordinates).
		SetPomSettings(testPomSettings()).
		SetSbom(true).
		SetSigner(signer).
		Build(outputs)
	require.NoError(t, err)

	// jar, pom, sbom and a signature for each of them.
	require.Len(t, descriptor.Artifacts, 6)
	sbom := descriptor.Find(SbomClassifier, SbomExtension)
	require.NotNil(t, sbom)
	assert.Contains(t, string(sbom.Content), "pkg:maven/org.hypertrace.core/lib@1.2.0")

	jarSignature := descriptor.Find("", "jar.asc")
	require.NotNil(t, jarSignature)
	assert.True(t, jarSignature.IsSignature())
	jar, err := os.ReadFile(descriptor.Primary().Path)
	require.NoError(t, err)
	_, err = openpgp.CheckArmoredDetachedSignature(keyRing, bytes.NewReader(jar), bytes.NewReader(jarSignature.Content), nil)
	assert.NoError(t, err)
	assert.NotNil(t, descriptor.Find(SbomClassifier, "json.asc"))
	assert.NotNil(t, descriptor.Find("", "pom.asc"))
}

func TestBuildDistributionZip(t *testing.T) {
	dir := createOutputs(t, "lib-1.2.0.zip")
	outputs, err := ScanOutputs(dir, testCoordinates)
	require.NoError(t, err)
	settings := testPomSettings()
	settings.License = entities.Proprietary
	descriptor, err := NewBuilder(testCoordinates).SetPomSettings(settings).Build(outputs)
	require.NoError(t, err)

	assert.Equal(t, "zip", descriptor.Packaging)
	assert.Equal(t, "zip", descriptor.Primary().Extension)
	require.NotNil(t, descriptor.Pom)
	assert.Equal(t, []entities.PomLicense{{Name: "Proprietary"}}, descriptor.Pom.Licenses)
}

func TestNewSignerKeyId(t *testing.T) {
	armoredKey, keyRing := generateKey(t)
	keyId := keyRing[0].PrimaryKey.KeyIdShortString()

	signer, err := NewSigner(armoredKey, "", strings.ToLower(keyId))
	require.NoError(t, err)
	assert.Equal(t, keyRing[0].PrimaryKey.KeyIdString(), signer.KeyId())

	_, err = NewSigner(armoredKey, "", "DEADBEEF")
	assert.ErrorContains(t, err, "not found")

	_, err = NewSigner("not a key", "", "")
	assert.Error(t, err)
}

func generateKey(t *testing.T) (string, openpgp.EntityList) {
	entity, err := openpgp.NewEntity("Hypertrace Release", "test", "release@hypertrace.org", nil)
	require.NoError(t, err)
	var armored bytes.Buffer
	writer, err := armor.Encode(&armored, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(writer, nil))
	require.NoError(t, writer.Close())
	return armored.String(), openpgp.EntityList{entity}
}
