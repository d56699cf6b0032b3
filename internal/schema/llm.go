package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seaway-data/shiptrace/internal/httputil"
	"github.com/seaway-data/shiptrace/internal/monitoring"
)

// LLMResolver layers a language-model pass over a heuristic resolver. The
// heuristic table runs first; only headers it could not place are submitted
// to the model. Any backend failure degrades to the heuristic mapping with
// Partial set; resolution never aborts loading.
type LLMResolver struct {
	heuristic *HeuristicResolver
	client    httputil.HTTPClient

	baseURL     string
	model       string
	apiKey      string
	temperature float64
}

// NewLLMResolver creates a resolver backed by an OpenAI-compatible
// chat-completions endpoint. baseURL is the API root (e.g.
// "https://api.deepseek.com"); the key is read from the environment by the
// caller and passed in, never logged.
func NewLLMResolver(heuristic *HeuristicResolver, client httputil.HTTPClient, baseURL, model, apiKey string, temperature float64) *LLMResolver {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &LLMResolver{
		heuristic:   heuristic,
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: temperature,
	}
}

const resolvePrompt = `You map spreadsheet column headers of a ship voyage log onto a fixed schema.
Known fields: %s.
Headers: %s.
Sample rows: %s.
Reply with a single JSON object mapping each header you can identify to one known field. Omit headers you cannot identify. No prose.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Resolve runs the heuristic pass and then asks the model about leftover
// headers. Model answers are accepted only for canonical fields not already
// claimed; everything else stays an extra.
func (r *LLMResolver) Resolve(ctx context.Context, headers []string, samples [][]string) (*Mapping, error) {
	m, err := r.heuristic.Resolve(ctx, headers, samples)
	if err != nil {
		return nil, err
	}
	if len(m.Extras) == 0 {
		return m, nil
	}

	assisted, err := r.ask(ctx, m.Extras, samples)
	if err != nil {
		monitoring.Logf("schema: language-model pass failed, using heuristic mapping only: %v", err)
		m.Partial = true
		return m, nil
	}

	claimed := make(map[string]bool, len(m.Columns))
	for _, canon := range m.Columns {
		claimed[canon] = true
	}

	var extras []string
	for _, h := range m.Extras {
		canon, ok := assisted[h]
		if ok && IsCanonical(canon) && !claimed[canon] {
			m.Columns[h] = canon
			claimed[canon] = true
			continue
		}
		extras = append(extras, h)
	}
	m.Extras = extras
	return m, nil
}

// ask submits the unresolved headers plus sample rows and parses the model's
// JSON answer.
func (r *LLMResolver) ask(ctx context.Context, headers []string, samples [][]string) (map[string]string, error) {
	if r.apiKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}

	headerJSON, _ := json.Marshal(headers)
	sampleJSON, _ := json.Marshal(truncateSamples(samples, 3))
	prompt := fmt.Sprintf(resolvePrompt, strings.Join(CanonicalFields, ", "), headerJSON, sampleJSON)

	body, err := json.Marshal(chatRequest{
		Model:       r.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat request returned %d: %s", resp.StatusCode, payload)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("malformed chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("chat response carried no choices")
	}

	return parseMappingReply(cr.Choices[0].Message.Content)
}

// parseMappingReply extracts the JSON object from the model reply, tolerating
// markdown code fences around it.
func parseMappingReply(content string) (map[string]string, error) {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(s), &mapping); err != nil {
		return nil, fmt.Errorf("reply is not a JSON header mapping: %w", err)
	}
	return mapping, nil
}

func truncateSamples(samples [][]string, n int) [][]string {
	if len(samples) <= n {
		return samples
	}
	return samples[:n]
}
