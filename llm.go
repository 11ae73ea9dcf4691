package salesbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Completer is the LLM contract the planner, narrator and analysts depend
// on. Both shapes are single synchronous calls; callers decide whether a
// failure degrades or retries.
type Completer interface {
	// Complete answers a free-text prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithSystem answers a system+user prompt pair whose response
	// is expected to contain a JSON object.
	CompleteWithSystem(ctx context.Context, system, user string) (string, error)
}

// ModelLister enumerates the usable generative models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// preferredModels orders the model picker; earlier is better.
var preferredModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-pro",
}

// fallbackModels is returned when the listing endpoint is unreachable.
var fallbackModels = []string{"gemini-1.5-flash", "gemini-1.5-pro"}

// Row-capacity thresholds per model: above the threshold the size guard
// answers without an LLM call instead of sending an oversized digest.
var defaultModelRowCapacity = map[string]int{
	"gemini-1.5-pro":   50000,
	"gemini-1.5-flash": 25000,
	"gemini-pro":       10000,
}

const fallbackRowCapacity = 10000

// RowCapacityFor returns the row threshold for a model name, tolerating the
// "models/" resource prefix.
func RowCapacityFor(capacities map[string]int, modelName string) int {
	if capacities == nil {
		capacities = defaultModelRowCapacity
	}
	name := strings.TrimPrefix(modelName, "models/")
	if limit, ok := capacities[name]; ok {
		return limit
	}
	return fallbackRowCapacity
}

// GeminiClient implements Completer and ModelLister over the Gemini REST
// API.
type GeminiClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger

	// Overridable in tests.
	baseURL string
}

// NewGeminiClient builds a client for the given model, e.g.
// "gemini-1.5-flash".
func NewGeminiClient(apiKey, model string, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		baseURL:    geminiBaseURL,
	}
}

// Model returns the model this client completes with.
func (c *GeminiClient) Model() string { return c.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single-turn free-text prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
}

// CompleteWithSystem sends a system instruction plus a user turn.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return c.generate(ctx, geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
	})
}

func (c *GeminiClient) generate(ctx context.Context, payload geminiRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("salesbot: encode completion request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("salesbot: completion call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("salesbot: decode completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", fmt.Errorf("salesbot: completion call: %s", msg)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("salesbot: completion returned no candidates")
	}

	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// ListModels returns the generative models available to this key, preferred
// models first, the rest in listing order. When the listing fails a static
// fallback list is returned with the failure logged.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.fetchModels(ctx)
	if err != nil {
		c.logger.Warn("model listing failed, using fallback list", zap.Error(err))
		return slices.Clone(fallbackModels), nil
	}
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	ordered := make([]string, 0, len(models))
	for _, preferred := range preferredModels {
		if slices.Contains(models, preferred) {
			ordered = append(ordered, preferred)
		}
	}
	for _, m := range models {
		if !slices.Contains(ordered, m) {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

func (c *GeminiClient) fetchModels(ctx context.Context) ([]string, error) {
	u := fmt.Sprintf("%s/models?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Models []struct {
			Name             string   `json:"name"`
			SupportedMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var models []string
	for _, m := range payload.Models {
		if slices.Contains(m.SupportedMethods, "generateContent") {
			models = append(models, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return models, nil
}
