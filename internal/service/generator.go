package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/mockup-studio/internal/prompts"
)

// GenerationError is returned when the provider answered but produced no image.
type GenerationError struct {
	FinishReason string
	Message      string
}

func (e *GenerationError) Error() string {
	return e.Message
}

// GeminiGenerator calls the Gemini generateContent API for mockup images.
type GeminiGenerator struct {
	client  *resty.Client
	baseURL string
	model   string
}

// GeminiConfig holds configuration for the Gemini image generator.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewGeminiGenerator creates a new Gemini-backed ImageGenerator.
// Parameters:
//   - cfg: API key, endpoint and default model.
//
// Returns:
//   - *GeminiGenerator: initialized client wrapper.
func NewGeminiGenerator(cfg *GeminiConfig) *GeminiGenerator {
	client := resty.New()
	client.SetHeader("x-goog-api-key", cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	return &GeminiGenerator{
		client:  client,
		baseURL: baseURL,
		model:   model,
	}
}

// GetModel returns the default model name.
func (g *GeminiGenerator) GetModel() string {
	return g.model
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate renders one mockup. The sample references are sent first and the
// artwork last, followed by the guarded text prompt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: prompt, aspect ratio and data URL images.
//
// Returns:
//   - string: generated image as a data URL.
//   - error: non-nil if the request fails or no image came back.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	parts := make([]geminiPart, 0, len(req.References)+2)
	for _, ref := range req.References {
		part, err := inlinePart(ref)
		if err != nil {
			return "", fmt.Errorf("invalid reference image: %w", err)
		}
		parts = append(parts, part)
	}
	artwork, err := inlinePart(req.Artwork)
	if err != nil {
		return "", fmt.Errorf("invalid artwork image: %w", err)
	}
	parts = append(parts, artwork)
	parts = append(parts, geminiPart{
		Text: prompts.BuildMockupPrompt(req.Prompt, req.AspectRatio, len(req.References) > 0),
	})

	model := req.Model
	if model == "" {
		model = g.model
	}

	body := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model))
	if err != nil {
		return "", fmt.Errorf("failed to call gemini API: %w", err)
	}

	if httpResp.IsError() {
		if resp.Error != nil && resp.Error.Message != "" {
			return "", fmt.Errorf("gemini API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("gemini API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	return extractImage(&resp)
}

func inlinePart(dataURL string) (geminiPart, error) {
	mimeType, payload, err := splitDataURL(dataURL)
	if err != nil {
		return geminiPart{}, err
	}
	return geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: payload}}, nil
}

func extractImage(resp *geminiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &GenerationError{Message: "No image data found in the AI response."}
	}
	candidate := resp.Candidates[0]
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = defaultImageMIME
			}
			return fmt.Sprintf("data:%s;base64,%s", mimeType, part.InlineData.Data), nil
		}
	}
	if reason := candidate.FinishReason; reason != "" && reason != "STOP" {
		return "", &GenerationError{
			FinishReason: reason,
			Message:      fmt.Sprintf("Generation blocked: %s.", reason),
		}
	}
	return "", &GenerationError{
		FinishReason: candidate.FinishReason,
		Message:      "No image data found in the AI response.",
	}
}
