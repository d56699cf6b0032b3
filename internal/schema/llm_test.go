package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaway-data/shiptrace/internal/httputil"
)

func newLLMUnderTest(t *testing.T, client httputil.HTTPClient) *LLMResolver {
	t.Helper()
	heuristic, err := NewHeuristicResolver(nil)
	require.NoError(t, err)
	return NewLLMResolver(heuristic, client, "https://llm.example.com", "test-model", "test-key", 0.1)
}

func TestLLMResolveFillsUnresolvedHeaders(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `{"choices":[{"message":{"role":"assistant","content":"{\"主机瞬时油耗\":\"fuel\"}"}}]}`)

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"时间", "纬度", "经度", "主机瞬时油耗"}, nil)
	require.NoError(t, err)

	assert.Equal(t, FieldFuel, m.Columns["主机瞬时油耗"])
	assert.Empty(t, m.Extras)
	assert.False(t, m.Partial)
}

func TestLLMResolveSkipsWhenNothingUnresolved(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	// no queued response: any request would fail the test

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"timestamp", "lat", "lon"}, nil)
	require.NoError(t, err)
	assert.Empty(t, m.Extras)
	assert.False(t, m.Partial)
}

func TestLLMResolveDegradesOnBackendError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddError(errors.New("connection refused"))

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"timestamp", "lat", "lon", "奇怪的列"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Partial)
	assert.Equal(t, []string{"奇怪的列"}, m.Extras)
}

func TestLLMResolveDegradesOnBadStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(429, `{"error":"rate limited"}`)

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"timestamp", "lat", "lon", "奇怪的列"}, nil)
	require.NoError(t, err)
	assert.True(t, m.Partial)
}

func TestLLMResolveRejectsAlreadyClaimedFields(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	// model tries to remap an unknown header onto an already claimed field
	mock.AddResponse(200, `{"choices":[{"message":{"role":"assistant","content":"{\"second time\":\"timestamp\"}"}}]}`)

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"timestamp", "lat", "lon", "second time"}, nil)
	require.NoError(t, err)

	assert.Equal(t, FieldTimestamp, m.Columns["timestamp"])
	_, remapped := m.Columns["second time"]
	assert.False(t, remapped)
	assert.Equal(t, []string{"second time"}, m.Extras)
}

func TestLLMResolveRejectsUnknownFields(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `{"choices":[{"message":{"role":"assistant","content":"{\"奇怪的列\":\"made_up_field\"}"}}]}`)

	r := newLLMUnderTest(t, mock)
	m, err := r.Resolve(context.Background(), []string{"timestamp", "lat", "lon", "奇怪的列"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"奇怪的列"}, m.Extras)
}

func TestParseMappingReplyToleratesFences(t *testing.T) {
	got, err := parseMappingReply("```json\n{\"a\":\"speed\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "speed"}, got)

	_, err = parseMappingReply("I cannot identify any headers.")
	assert.Error(t, err)
}
