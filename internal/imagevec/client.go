package imagevec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/types"
)

// maxLabels is how many classification labels are kept
const maxLabels = 2

// ErrNotImage is returned for uploads whose content type is not image/*
var ErrNotImage = errors.New("upload is not an image")

// Upload is one file received from a caller
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsImage reports whether the upload should be sent for analysis
func (u Upload) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u.ContentType)), "image")
}

// AnalyzeResponse is the collaborator's reply
type AnalyzeResponse struct {
	Embedding      []float32         `json:"embedding"`
	Classification []json.RawMessage `json:"classification"`
}

// Client calls the image classification and embedding service
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the service at apiURL. Per-call deadlines come
// from the context; timeout only bounds a call made without one.
func NewClient(apiURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("imagevec"),
	}
}

// Analyze posts the upload as multipart field "file" and returns its labels
// and embedding
func (c *Client) Analyze(ctx context.Context, upload Upload) (*types.ImageFeatures, error) {
	if !upload.IsImage() {
		return nil, ErrNotImage
	}

	body, contentType, err := multipartBody(upload)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image API error (%d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed AnalyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	features := &types.ImageFeatures{
		Labels:    topLabels(parsed.Classification, maxLabels),
		Embedding: parsed.Embedding,
	}
	c.logger.Debug("image analyzed",
		zap.Strings("labels", features.Labels),
		zap.Int("embedding_dims", len(features.Embedding)),
		zap.Duration("took", time.Since(start)),
	)
	return features, nil
}

func multipartBody(upload Upload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	filename := upload.Filename
	if filename == "" {
		filename = "upload"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", upload.ContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// topLabels reads up to n labels. Entries are [label, score] pairs; a bare
// string is also accepted.
func topLabels(entries []json.RawMessage, n int) []string {
	labels := make([]string, 0, n)
	for _, raw := range entries {
		if len(labels) == n {
			break
		}
		var pair []interface{}
		if err := json.Unmarshal(raw, &pair); err == nil {
			if len(pair) > 0 {
				if s, ok := pair[0].(string); ok && strings.TrimSpace(s) != "" {
					labels = append(labels, strings.TrimSpace(s))
				}
			}
			continue
		}
		var label string
		if err := json.Unmarshal(raw, &label); err == nil && strings.TrimSpace(label) != "" {
			labels = append(labels, strings.TrimSpace(label))
		}
	}
	return labels
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
