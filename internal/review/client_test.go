package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientReviewPostsJSON(t *testing.T) {
	var got map[string]any
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, Path, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quality_score":0.8,"review_summary":"Looks fine"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL + "/")
	res, err := c.Review(context.Background(), Request{
		CodeSnippet: "x=1",
		Language:    "python",
		FilePath:    "a.py",
		Model:       "gpt-4.1-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, map[string]any{
		"code_snippet": "x=1",
		"language":     "python",
		"file_path":    "a.py",
		"model":        "gpt-4.1-mini",
	}, got)
	assert.Equal(t, map[string]any{"quality_score": 0.8, "review_summary": "Looks fine"}, res)
}

func TestClientOmitsEmptyModel(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Review(context.Background(), Request{CodeSnippet: "a", Language: "go", FilePath: "a.go"})
	require.NoError(t, err)
	_, present := got["model"]
	assert.False(t, present)
}

func TestClientNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("  internal error\n"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Review(context.Background(), Request{CodeSnippet: "a"})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, "  internal error\n", se.Body, "body is kept verbatim")
	assert.Equal(t, "review service returned HTTP 500:   internal error\n", err.Error())
}

func TestClientLimitsResponseBody(t *testing.T) {
	prev := maxResponseBytes
	maxResponseBytes = 16
	t.Cleanup(func() { maxResponseBytes = prev })

	serve := func(status int) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	_, err := NewClient(serve(http.StatusBadGateway).URL).Review(context.Background(), Request{CodeSnippet: "a"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, strings.Repeat("x", 16), se.Body)

	_, err = NewClient(serve(http.StatusOK).URL).Review(context.Background(), Request{CodeSnippet: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestClientInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Review(context.Background(), Request{CodeSnippet: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode review response")
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).Review(context.Background(), Request{CodeSnippet: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review request failed")
}

func TestClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient("  ").Review(context.Background(), Request{CodeSnippet: "a"})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Looks fine", Summary(map[string]any{"review_summary": "Looks fine"}))
	assert.Equal(t, "", Summary(map[string]any{}))
	assert.Equal(t, "", Summary(nil))
	assert.Equal(t, "", Summary([]any{"x"}))
	assert.Equal(t, "{\n  \"issues\": 2\n}", Summary(map[string]any{"review_summary": map[string]any{"issues": 2}}))
}
