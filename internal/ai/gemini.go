package ai

import (
	"context"
	"errors"
	"iter"

	"google.golang.org/genai"
)

const geminiName = "gemini"

// GeminiProvider talks to the Gemini API. Assistant turns are sent with the
// "model" role; the instruction travels as the system instruction.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the public endpoint; empty uses the SDK default.
	BaseURL string
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return geminiName }

func (p *GeminiProvider) Complete(ctx context.Context, instruction string, transcript []Turn, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(transcript, prompt), geminiConfig(instruction))
	if err != nil {
		return "", modelErr(geminiName, err)
	}
	text := resp.Text()
	if text == "" {
		return "", modelErr(geminiName, ErrEmptyReply)
	}
	return text, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, instruction string, transcript []Turn, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		empty := true
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, geminiContents(transcript, prompt), geminiConfig(instruction)) {
			if err != nil {
				yield("", modelErr(geminiName, err))
				return
			}
			if text := resp.Text(); text != "" {
				empty = false
				if !yield(text, nil) {
					return
				}
			}
		}
		if empty {
			yield("", modelErr(geminiName, ErrEmptyReply))
		}
	}
}

func geminiConfig(instruction string) *genai.GenerateContentConfig {
	if instruction == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}
}

func geminiContents(transcript []Turn, prompt string) []*genai.Content {
	out := make([]*genai.Content, 0, len(transcript)+1)
	for _, t := range transcript {
		out = append(out, genai.NewContentFromText(t.Text, geminiRole(t.Role)))
	}
	return append(out, genai.NewContentFromText(prompt, genai.RoleUser))
}

func geminiRole(r Role) genai.Role {
	if r == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}
