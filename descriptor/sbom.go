package descriptor

import (
	"bytes"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/hypertrace/artifact-publisher/entities"
)

const (
	SbomClassifier = "cyclonedx"
	SbomExtension  = "json"
)

// ToCycloneDxBom describes the descriptor's files as a CycloneDX document whose subject is the descriptor itself.
func ToCycloneDxBom(descriptor *entities.ArtifactDescriptor) (*cdx.BOM, error) {
	buildInfo := entities.New()
	buildInfo.AddModule(descriptor.ToModule(""))
	bom, err := buildInfo.ToCycloneDxBom()
	if err != nil {
		return nil, err
	}
	bom.Metadata = &cdx.Metadata{
		Component: &cdx.Component{
			BOMRef:     descriptor.Coordinates.String(),
			Type:       cdx.ComponentTypeLibrary,
			Group:      descriptor.GroupId,
			Name:       descriptor.ArtifactId,
			Version:    descriptor.Version,
			PackageURL: descriptor.PackageUrl(),
		},
	}
	return bom, nil
}

func EncodeCycloneDx(bom *cdx.BOM, format cdx.BOMFileFormat) ([]byte, error) {
	var content bytes.Buffer
	encoder := cdx.NewBOMEncoder(&content, format)
	encoder.SetPretty(true)
	if err := encoder.Encode(bom); err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}
