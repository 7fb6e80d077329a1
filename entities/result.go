package entities

type PublishStatus string

const (
	StatusSuccess           PublishStatus = "success"
	StatusFailed            PublishStatus = "failed"
	StatusPartiallyUploaded PublishStatus = "partially-uploaded"
)

// PublishResult is the outcome of publishing one descriptor to one repository target.
type PublishResult struct {
	Target     string        `json:"target"`
	Repository string        `json:"repository,omitempty"`
	Status     PublishStatus `json:"status"`
	SessionId  string        `json:"sessionId,omitempty"`
	State      string        `json:"state,omitempty"`
	Uploaded   []string      `json:"uploaded,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   string        `json:"duration"`
	// Err keeps the typed error for callers that classify failures.
	Err error `json:"-"`
}

func (pr *PublishResult) Succeeded() bool {
	return pr.Status == StatusSuccess
}

// PublishResults aggregates the per-target outcomes of a single publish call, in the order the targets were requested.
type PublishResults struct {
	Coordinates string          `json:"coordinates"`
	Results     []PublishResult `json:"results"`
}

func (prs *PublishResults) Get(target string) (*PublishResult, bool) {
	for i := range prs.Results {
		if prs.Results[i].Target == target {
			return &prs.Results[i], true
		}
	}
	return nil, false
}

func (prs *PublishResults) Succeeded() bool {
	if len(prs.Results) == 0 {
		return false
	}
	for _, result := range prs.Results {
		if !result.Succeeded() {
			return false
		}
	}
	return true
}

// ExitCode is 0 only if every target succeeded.
func (prs *PublishResults) ExitCode() int {
	if prs.Succeeded() {
		return 0
	}
	return 1
}
