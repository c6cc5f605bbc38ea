package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	assert.NoError(t, err)
}

const factsJSON = "```json\n" + `[
  {"title": "Honey never spoils", "blurb": "Edible honey was found in Egyptian tombs.", "topic": "History",
   "quiz": {"question": "Where was it found?", "options": ["Tombs", "Caves"], "correctAnswer": 0, "explanation": "Pharaohs."}}
]` + "\n```"

func newTestClient(url string, retries int) *Client {
	return New(Config{
		BaseURL:    url,
		APIKey:     "test",
		MaxRetries: retries,
		RetryWait:  time.Millisecond,
	}, nil)
}

func TestGenerate(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		chatResponse(t, w, factsJSON)
	}))
	defer srv.Close()

	facts, err := newTestClient(srv.URL, 1).Generate(context.Background(), "history", 3)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Honey never spoils", facts[0].Title)
	assert.Equal(t, "history", facts[0].Topic)
	require.NotNil(t, facts[0].Quiz)
	assert.Equal(t, []string{"Tombs", "Caves"}, facts[0].Quiz.Options)

	assert.Equal(t, "deepseek-chat", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Generate 3 fascinating")
	assert.Contains(t, req.Messages[1].Content, "about history")
}

func TestGenerateRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		chatResponse(t, w, factsJSON)
	}))
	defer srv.Close()

	facts, err := newTestClient(srv.URL, 3).Generate(context.Background(), "history", 1)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		chatResponse(t, w, "I cannot help with that.")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Generate(context.Background(), "space", 1)
	assert.ErrorContains(t, err, "failed to generate space facts")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL, 3).Generate(ctx, "space", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
