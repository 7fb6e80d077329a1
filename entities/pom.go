package entities

import (
	"encoding/xml"
	"fmt"

	"golang.org/x/exp/slices"
)

const (
	pomNamespace      = "http://maven.apache.org/POM/4.0.0"
	pomSchemaInstance = "http://www.w3.org/2001/XMLSchema-instance"
	pomSchemaLocation = "http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd"
	pomModelVersion   = "4.0.0"
)

// License is one of the licenses the projects are published under.
type License string

const (
	AGPLv3             License = "AGPL-V3"
	Apache2_0          License = "Apache-2.0"
	TraceableCommunity License = "Traceable"
	Proprietary        License = "Proprietary"
)

var SupportedLicenses = []License{Apache2_0, AGPLv3, TraceableCommunity, Proprietary}

// Only the open source licenses have a public text to link to.
var licenseUrls = map[License]string{
	AGPLv3:    "https://www.gnu.org/licenses/agpl-3.0.txt",
	Apache2_0: "https://www.apache.org/licenses/LICENSE-2.0.txt",
}

func ParseLicense(name string) (License, error) {
	license := License(name)
	if !slices.Contains(SupportedLicenses, license) {
		return "", fmt.Errorf("unsupported license '%s', expected one of %v", name, SupportedLicenses)
	}
	return license, nil
}

func (l License) Url() string {
	return licenseUrls[l]
}

// Pom represents the subset of pom.xml that repositories such as Maven Central require.
type Pom struct {
	XMLName           xml.Name       `xml:"project"`
	Xmlns             string         `xml:"xmlns,attr"`
	XmlnsXsi          string         `xml:"xmlns:xsi,attr"`
	XsiSchemaLocation string         `xml:"xsi:schemaLocation,attr"`
	ModelVersion      string         `xml:"modelVersion"`
	GroupId           string         `xml:"groupId"`
	ArtifactId        string         `xml:"artifactId"`
	Version           string         `xml:"version"`
	Packaging         string         `xml:"packaging,omitempty"`
	Name              string         `xml:"name,omitempty"`
	Description       string         `xml:"description,omitempty"`
	URL               string         `xml:"url,omitempty"`
	Licenses          []PomLicense   `xml:"licenses>license,omitempty"`
	Developers        []PomDeveloper `xml:"developers>developer,omitempty"`
	Scm               *PomScm        `xml:"scm,omitempty"`
}

type PomLicense struct {
	Name string `xml:"name"`
	URL  string `xml:"url,omitempty"`
}

type PomDeveloper struct {
	Id              string `xml:"id,omitempty" toml:"id" yaml:"id" json:"id,omitempty"`
	Name            string `xml:"name,omitempty" toml:"name" yaml:"name" json:"name,omitempty"`
	Email           string `xml:"email,omitempty" toml:"email" yaml:"email" json:"email,omitempty"`
	Organization    string `xml:"organization,omitempty" toml:"organization" yaml:"organization" json:"organization,omitempty"`
	OrganizationUrl string `xml:"organizationUrl,omitempty" toml:"organizationUrl" yaml:"organizationUrl" json:"organizationUrl,omitempty"`
}

type PomScm struct {
	Connection          string `xml:"connection,omitempty"`
	DeveloperConnection string `xml:"developerConnection,omitempty"`
	URL                 string `xml:"url,omitempty"`
}

func NewPom(coordinates Coordinates, packaging string) *Pom {
	return &Pom{
		Xmlns:             pomNamespace,
		XmlnsXsi:          pomSchemaInstance,
		XsiSchemaLocation: pomSchemaLocation,
		ModelVersion:      pomModelVersion,
		GroupId:           coordinates.GroupId,
		ArtifactId:        coordinates.ArtifactId,
		Version:           coordinates.Version,
		Packaging:         packaging,
	}
}

func (p *Pom) Coordinates() Coordinates {
	return Coordinates{GroupId: p.GroupId, ArtifactId: p.ArtifactId, Version: p.Version}
}

// Marshal renders the POM document with an XML header.
func (p *Pom) Marshal() ([]byte, error) {
	content, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(content, '\n')...), nil
}

func UnmarshalPom(content []byte) (*Pom, error) {
	pom := &Pom{}
	if err := xml.Unmarshal(content, pom); err != nil {
		return nil, err
	}
	return pom, nil
}
