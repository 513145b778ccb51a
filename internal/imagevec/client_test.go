package imagevec

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnalyze_SendsMultipartAndKeepsTopTwoLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "shoe.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3],"classification":[["running shoe",0.91],["sneaker",0.5],["sandal",0.1]]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	features, err := client.Analyze(context.Background(), Upload{
		Filename:    "shoe.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"running shoe", "sneaker"}, features.Labels)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, features.Embedding)
	assert.True(t, features.HasEmbedding())
}

func TestAnalyze_RejectsNonImage(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, nil)
	_, err := client.Analyze(context.Background(), Upload{ContentType: "application/pdf"})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestAnalyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.Analyze(context.Background(), Upload{ContentType: "image/jpeg", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAnalyze_MissingEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"classification":[]}`))
	}))
	defer srv.Close()

	features, err := NewClient(srv.URL, time.Second, nil).Analyze(context.Background(), Upload{ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Empty(t, features.Labels)
	assert.False(t, features.HasEmbedding())
}

func TestAnalyze_ServerErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("画像", 150)))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.Analyze(context.Background(), Upload{ContentType: "image/jpeg", Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("画像", 100)+"...")
}

func TestTopLabels_AcceptsBareStrings(t *testing.T) {
	entries := []json.RawMessage{json.RawMessage(`"laptop"`), json.RawMessage(`[""]`), json.RawMessage(`["bag", 0.2]`)}
	assert.Equal(t, []string{"laptop", "bag"}, topLabels(entries, 2))
}

func TestUpload_IsImage(t *testing.T) {
	assert.True(t, Upload{ContentType: "image/webp"}.IsImage())
	assert.True(t, Upload{ContentType: "Image/JPEG"}.IsImage())
	assert.False(t, Upload{ContentType: "text/plain"}.IsImage())
	assert.False(t, Upload{}.IsImage())
}
