package ai

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	// Name identifies the provider in errors and logs ("openrouter", "ollama").
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Headers are added to every request, e.g. OpenRouter's HTTP-Referer and X-Title.
	Headers map[string]string
	Timeout time.Duration
}

// OpenAIProvider speaks the OpenAI chat completions protocol, which OpenRouter
// and Ollama (/v1) both expose.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New(cfg.Name + ": model is required")
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// Timeout covers the whole exchange, streamed bodies included
	c.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: headerTransport{headers: cfg.Headers, base: http.DefaultTransport},
	}
	return &OpenAIProvider{name: cfg.Name, model: model, client: openai.NewClientWithConfig(c)}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, instruction string, transcript []Turn, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(instruction, transcript, prompt, false))
	if err != nil {
		return "", modelErr(p.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", modelErr(p.name, ErrEmptyReply)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, instruction string, transcript []Turn, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(instruction, transcript, prompt, true))
		if err != nil {
			yield("", modelErr(p.name, err))
			return
		}
		defer stream.Close()

		empty := true
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if empty {
					yield("", modelErr(p.name, ErrEmptyReply))
				}
				return
			}
			if err != nil {
				yield("", modelErr(p.name, err))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			empty = false
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (p *OpenAIProvider) request(instruction string, transcript []Turn, prompt string, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(transcript)+2)
	if instruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instruction})
	}
	for _, t := range transcript {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	return openai.ChatCompletionRequest{Model: p.model, Messages: msgs, Stream: stream}
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			if v != "" {
				req.Header.Set(k, v)
			}
		}
	}
	return t.base.RoundTrip(req)
}
