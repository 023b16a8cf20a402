package gemini

import (
	"errors"
	"fmt"
)

type HarmCategory string

const (
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

type HarmBlockThreshold string

const BlockMediumAndAbove HarmBlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"

// GenerationConfig is sent verbatim as the "generationConfig" object.
type GenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	TopK            int      `json:"topK"`
	TopP            float64  `json:"topP"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	StopSequences   []string `json:"stopSequences"`
}

type SafetySetting struct {
	Category  HarmCategory       `json:"category"`
	Threshold HarmBlockThreshold `json:"threshold"`
}

// DefaultGenerationConfig returns the generation parameters used for every
// request. StopSequences is non-nil so it encodes as [].
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 500,
		StopSequences:   []string{},
	}
}

// DefaultSafetySettings returns the safety policy used for every request, in
// the order it is sent upstream.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmCategoryHateSpeech, Threshold: BlockMediumAndAbove},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockMediumAndAbove},
		{Category: HarmCategoryDangerousContent, Threshold: BlockMediumAndAbove},
	}
}

// generateRequest is the request shape for models/{model}:generateContent.
type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

func newGenerateRequest(prompt string) generateRequest {
	return generateRequest{
		Contents:         []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: DefaultGenerationConfig(),
		SafetySettings:   DefaultSafetySettings(),
	}
}

// generateResponse is the minimal response shape of generateContent.
type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      *responseContent `json:"content,omitempty"`
	FinishReason string           `json:"finishReason,omitempty"`
}

type responseContent struct {
	Parts []responsePart `json:"parts"`
}

type responsePart struct {
	Text *string `json:"text,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// ErrNoText reports a successful upstream response that carries no text at
// candidates[0].content.parts[0].text, e.g. because the prompt or the answer
// was blocked by the safety policy.
var ErrNoText = errors.New("gemini: no text in response")

func (r generateResponse) firstText() (string, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrNoText, r.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", ErrNoText)
	}
	c := r.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0].Text == nil {
		if c.FinishReason != "" {
			return "", fmt.Errorf("%w: finish reason %s", ErrNoText, c.FinishReason)
		}
		return "", fmt.Errorf("%w: candidate has no content parts", ErrNoText)
	}
	return *c.Content.Parts[0].Text, nil
}
