package event

import "errors"

// CodeBuild is the CodeBuild build state-change payload.
type CodeBuild struct {
	ID     string          `json:"id"`
	Region string          `json:"region"`
	Detail CodeBuildDetail `json:"detail"`
}

type CodeBuildDetail struct {
	BuildStatus  string `json:"build-status"`
	ProjectName  string `json:"project-name,omitempty"`
	CurrentPhase string `json:"current-phase,omitempty"`
}

var errEmptyPayload = errors.New("empty payload")

// MissingFieldError reports a required payload field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return "missing " + e.Field }

// codeBuildWire tells absent fields from empty ones.
type codeBuildWire struct {
	ID     *string `json:"id"`
	Region *string `json:"region"`
	Detail *struct {
		BuildStatus  *string `json:"build-status"`
		ProjectName  *string `json:"project-name"`
		CurrentPhase string  `json:"current-phase"`
	} `json:"detail"`
}

// DecodeCodeBuild requires id, region and detail.build-status.
func DecodeCodeBuild(payload string) (CodeBuild, error) {
	if payload == "" {
		return CodeBuild{}, errEmptyPayload
	}
	var w *codeBuildWire
	if err := json.UnmarshalFromString(payload, &w); err != nil {
		return CodeBuild{}, err
	}
	if w == nil {
		return CodeBuild{}, errors.New("payload is null")
	}
	switch {
	case w.ID == nil:
		return CodeBuild{}, &MissingFieldError{Field: "id"}
	case w.Region == nil:
		return CodeBuild{}, &MissingFieldError{Field: "region"}
	case w.Detail == nil:
		return CodeBuild{}, &MissingFieldError{Field: "detail"}
	case w.Detail.BuildStatus == nil:
		return CodeBuild{}, &MissingFieldError{Field: "detail.build-status"}
	}

	cb := CodeBuild{
		ID:     *w.ID,
		Region: *w.Region,
		Detail: CodeBuildDetail{
			BuildStatus:  *w.Detail.BuildStatus,
			CurrentPhase: w.Detail.CurrentPhase,
		},
	}
	if w.Detail.ProjectName != nil {
		cb.Detail.ProjectName = *w.Detail.ProjectName
	}
	return cb, nil
}

// RequireProjectName fails when the build carries no project name.
func (cb CodeBuild) RequireProjectName() error {
	if cb.Detail.ProjectName == "" {
		return &MissingFieldError{Field: "detail.project-name"}
	}
	return nil
}
