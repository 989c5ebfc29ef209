package parser_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-recommender/internal/config"
	"job-recommender/internal/parser"
)

func newEmbeddingServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPEmbedder_EmbedStrings_Success(t *testing.T) {
	var gotBody map[string]interface{}
	srv := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		// 故意打乱顺序
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	})

	embedder, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: srv.URL, APIKey: "secret", Model: "m"})
	require.NoError(t, err)

	vectors, err := embedder.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "m", gotBody["model"])
}

func TestHTTPEmbedder_ModelOption(t *testing.T) {
	var gotModel string
	srv := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		gotModel = body.Model
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5]}]}`))
	})

	embedder, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "all-MiniLM-L6-v2", embedder.Model())

	_, err = embedder.EmbedStrings(context.Background(), []string{"a"}, embedding.WithModel("other-model"))
	require.NoError(t, err)
	assert.Equal(t, "other-model", gotModel)
}

func TestHTTPEmbedder_ErrorStatus(t *testing.T) {
	srv := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})

	embedder, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "状态码: 503")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestHTTPEmbedder_CountMismatch(t *testing.T) {
	srv := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	})
	embedder, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestHTTPEmbedder_EmptyInput(t *testing.T) {
	embedder, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	vectors, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestNewHTTPEmbedder_RequiresBaseURL(t *testing.T) {
	_, err := parser.NewHTTPEmbedder(config.EmbeddingConfig{})
	assert.Error(t, err)
}
