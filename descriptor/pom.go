package descriptor

import (
	"fmt"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils"
)

const (
	DefaultProjectUrl      = "https://www.hypertrace.org"
	DefaultDeveloperId     = "hypertrace"
	DefaultDeveloperName   = "Hypertrace Community"
	DefaultDeveloperEmail  = "community@hypertrace.org"
	DefaultOrganization    = "Hypertrace"
	DefaultOrganizationUrl = "https://www.hypertrace.org"

	scmConnectionFormat          = "scm:git:git://github.com/%s.git"
	scmDeveloperConnectionFormat = "scm:git:ssh://github.com:%s.git"
	scmUrlFormat                 = "https://github.com/%s/tree/main"
)

// PomSettings hold the project metadata that goes into a generated POM.
type PomSettings struct {
	Description     string
	Url             string
	License         entities.License
	ScmOrganization string
	RepoName        string
	Developers      []entities.PomDeveloper
}

func DefaultPomSettings() PomSettings {
	return PomSettings{
		Url:             DefaultProjectUrl,
		ScmOrganization: DefaultDeveloperId,
		Developers: []entities.PomDeveloper{{
			Id:              DefaultDeveloperId,
			Name:            DefaultDeveloperName,
			Email:           DefaultDeveloperEmail,
			Organization:    DefaultOrganization,
			OrganizationUrl: DefaultOrganizationUrl,
		}},
	}
}

// GeneratePom creates the POM document for the coordinates. A license and a repository name are required.
func GeneratePom(coordinates entities.Coordinates, packaging string, settings PomSettings) (*entities.Pom, error) {
	if settings.License == "" {
		return nil, utils.NewDescriptorError(coordinates.String(), "a license type must be specified to generate the POM")
	}
	if settings.RepoName == "" {
		return nil, utils.NewDescriptorError(coordinates.String(), "a repository name must be specified to generate the POM")
	}
	pom := entities.NewPom(coordinates, packaging)
	pom.Name = fmt.Sprintf("%s:%s", coordinates.GroupId, coordinates.ArtifactId)
	pom.Description = settings.Description
	pom.URL = settings.Url
	pom.Licenses = []entities.PomLicense{{Name: string(settings.License), URL: settings.License.Url()}}
	pom.Developers = settings.Developers
	if settings.ScmOrganization != "" {
		qualifiedRepo := fmt.Sprintf("%s/%s", settings.ScmOrganization, settings.RepoName)
		pom.Scm = &entities.PomScm{
			Connection:          fmt.Sprintf(scmConnectionFormat, qualifiedRepo),
			DeveloperConnection: fmt.Sprintf(scmDeveloperConnectionFormat, qualifiedRepo),
			URL:                 fmt.Sprintf(scmUrlFormat, qualifiedRepo),
		}
	}
	return pom, nil
}
