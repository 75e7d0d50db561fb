package domain

// AppStep is the single discriminant of what the browser renders.
type AppStep string

const (
	StepIdle       AppStep = "idle"
	StepGenerating AppStep = "generating"
	StepPreview    AppStep = "preview"
	StepHistory    AppStep = "history"
	StepPricing    AppStep = "pricing"
)

// ParseAppStep returns the step named by s.
func ParseAppStep(s string) (AppStep, bool) {
	switch step := AppStep(s); step {
	case StepIdle, StepGenerating, StepPreview, StepHistory, StepPricing:
		return step, true
	}
	return "", false
}

// Session is a point-in-time view of a lifecycle controller.
type Session struct {
	Step       AppStep            `json:"step"`
	Prompt     string             `json:"prompt"`
	Document   *GeneratedDocument `json:"document"`
	Signature  *SignatureData     `json:"signature"`
	Profile    *ProfileView       `json:"profile"`
	Editing    bool               `json:"editing"`
	Generating bool               `json:"generating"`
}

// NavigateRequest is the body of POST /v1/session/navigate.
type NavigateRequest struct {
	Step string `json:"step"`
}

// EditRequest is the body of PUT /v1/documents/edit.
type EditRequest struct {
	HTMLContent string `json:"htmlContent"`
}
