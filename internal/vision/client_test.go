package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koki-187/200-sub000/internal/domain"
)

func modelReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := geminiGenerateContentResponse{
		Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)
}

func TestExtractParsesFields(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiGenerateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		require.NotNil(t, req.Contents[0].Parts[1].InlineData)
		require.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)

		modelReply(t, w, `{"property_name":{"value":"Sakura Court","confidence":0.93},"price":{"value":"92,000,000","confidence":0.81}}`)
	})

	fields, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{0x89, 0x50})
	require.NoError(t, err)
	require.Equal(t, "/models/test-model:generateContent", gotPath)
	require.Equal(t, "Sakura Court", fields[domain.FieldPropertyName].Value)
	require.Equal(t, 0.93, fields[domain.FieldPropertyName].Confidence)
	require.Equal(t, 0.81, fields[domain.FieldPrice].Confidence)
}

func TestExtractToleratesBareStringsAndFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, "```json\n{\"station\":\"Jiyugaoka\",\"walk_minutes\":{\"value\":\"7\",\"confidence\":1.4}}\n```")
	})

	fields, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{1})
	require.NoError(t, err)
	require.Equal(t, "Jiyugaoka", fields[domain.FieldStation].Value)
	require.Equal(t, defaultFieldConfidence, fields[domain.FieldStation].Confidence)
	require.Equal(t, 1.0, fields[domain.FieldWalkMinutes].Confidence, "confidence must be clamped to [0,1]")
}

func TestExtractIgnoresUnknownFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, `{"agent_phone":{"value":"03-1234-5678","confidence":0.9},"Zoning":{"value":"Category I residential","confidence":0.8}}`)
	})

	fields, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{1})
	require.NoError(t, err)
	_, ok := fields["agent_phone"]
	require.False(t, ok)
	require.Equal(t, "Category I residential", fields[domain.FieldZoning].Value, "field names match case-insensitively")
}

func TestExtractMalformedOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, "The document shows a lovely house.")
	})

	_, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{1})
	var eerr domain.ExtractionError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, "flyer.png", eerr.File)
}

func TestExtractUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	})

	_, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{1})
	var eerr domain.ExtractionError
	require.ErrorAs(t, err, &eerr)
	require.Contains(t, eerr.Err.Error(), "quota exceeded")
}

func TestExtractEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, "")
	})

	_, err := client.Extract(context.Background(), "flyer.png", "image/png", []byte{1})
	var eerr domain.ExtractionError
	require.ErrorAs(t, err, &eerr)
}

func TestParseFieldsDropsEmptyValues(t *testing.T) {
	fields, err := parseFields(`{"price":{"value":"  ","confidence":0.9},"yield":"4.1%"}`)
	require.NoError(t, err)
	_, ok := fields[domain.FieldPrice]
	require.False(t, ok)
	require.Equal(t, "4.1%", fields[domain.FieldYield].Value)
}
