package publish

import (
	"time"

	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/utils/cienv"
)

const AgentName = "artifact-publisher"

// NewBuildInfo records what was published: one module for the descriptor, holding every artifact per target it reached.
func NewBuildInfo(descriptor *entities.ArtifactDescriptor, results *entities.PublishResults, agentVersion string, started time.Time) *entities.BuildInfo {
	buildInfo := entities.New()
	buildInfo.Name = descriptor.GroupId + ":" + descriptor.ArtifactId
	buildInfo.Number = descriptor.Version
	buildInfo.SetAgentName(AgentName)
	buildInfo.SetAgentVersion(agentVersion)
	buildInfo.SetStarted(started)
	if vcs := cienv.GetVcsInfo(); vcs.Url != "" {
		buildInfo.VcsList = append(buildInfo.VcsList, entities.Vcs{Url: vcs.Url, Revision: vcs.Revision, Branch: vcs.Branch})
	}
	for _, result := range results.Results {
		if result.Succeeded() {
			buildInfo.AddModule(descriptor.ToModule(result.Target))
		}
	}
	return buildInfo
}
