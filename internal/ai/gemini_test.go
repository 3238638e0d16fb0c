package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

func TestGeminiContents_TranslatesAssistantToModel(t *testing.T) {
	contents := geminiContents(sampleTranscript, "and now?")
	require.Len(t, contents, 3)

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
	assert.Equal(t, "and now?", contents[2].Parts[0].Text)
}

func TestGeminiConfig(t *testing.T) {
	assert.Nil(t, geminiConfig(""))
	cfg := geminiConfig("be warm")
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be warm", cfg.SystemInstruction.Parts[0].Text)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(t.Context(), GeminiConfig{})
	assert.Error(t, err)
}

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func geminiChunk(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]string{"text": text}},
			},
		}},
	})
	return string(b)
}

// fakeGemini answers generateContent with the joined fragments and
// streamGenerateContent with one SSE event per fragment.
func fakeGemini(t *testing.T, got *geminiRequest, fragments []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":streamGenerateContent"):
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range fragments {
				fmt.Fprintf(w, "data: %s\n\n", geminiChunk(f))
				w.(http.Flusher).Flush()
			}
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, geminiChunk(strings.Join(fragments, "")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(t *testing.T, baseURL string) *GeminiProvider {
	t.Helper()
	p, err := NewGeminiProvider(t.Context(), GeminiConfig{APIKey: "k", Model: "gemini-test", BaseURL: baseURL})
	require.NoError(t, err)
	return p
}

func TestGeminiProvider_StreamConcatenatesToComplete(t *testing.T) {
	var got geminiRequest
	p := newTestGemini(t, fakeGemini(t, &got, []string{"keep", " going", "."}).URL)

	whole, err := p.Complete(t.Context(), "be warm", sampleTranscript, "and now?")
	require.NoError(t, err)
	assert.Equal(t, "keep going.", whole)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "and now?", got.Contents[2].Parts[0].Text)

	streamed, err := Collect(p.Stream(t.Context(), "be warm", sampleTranscript, "and now?"))
	require.NoError(t, err)
	assert.Equal(t, whole, streamed)
}

func TestGeminiProvider_ServerErrorIsModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`)
	}))
	t.Cleanup(srv.Close)
	p := newTestGemini(t, srv.URL)

	_, err := p.Complete(t.Context(), "", nil, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModel)
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "gemini", me.Provider)

	_, err = Collect(p.Stream(t.Context(), "", nil, "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModel)
}

func TestGeminiProvider_EmptyReplyFailsBothWays(t *testing.T) {
	p := newTestGemini(t, fakeGemini(t, nil, []string{""}).URL)

	_, err := p.Complete(t.Context(), "", nil, "hi")
	assert.ErrorIs(t, err, common.ErrModel)
	assert.ErrorIs(t, err, ErrEmptyReply)

	var frags []string
	var streamErr error
	for frag, err := range p.Stream(t.Context(), "", nil, "hi") {
		if err != nil {
			streamErr = err
			break
		}
		frags = append(frags, frag)
	}
	assert.Empty(t, frags)
	assert.ErrorIs(t, streamErr, common.ErrModel)
	assert.ErrorIs(t, streamErr, ErrEmptyReply)
}
