package domain

// ============================================================
// Document generation
// ============================================================

// GenerationRequest is what the gateway hands to a generation backend.
type GenerationRequest struct {
	UID               string `json:"uid"`
	SystemInstruction string `json:"system_instruction"`
	Prompt            string `json:"prompt"`
}

// GenerationResult is the raw backend answer before shape validation.
type GenerationResult struct {
	Payload    string     `json:"payload"`
	Model      string     `json:"model,omitempty"`
	TokensUsed TokenUsage `json:"tokens_used"`
}

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateRequest is the body of POST /v1/documents/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// ExamplePrompts are offered to the user on the empty composer.
var ExamplePrompts = []string{
	"Resignation letter effective in 2 weeks",
	"Freelance web design contract",
	"Letter of recommendation",
	"Non-Disclosure Agreement (NDA)",
	"Consulting Invoice",
}
