package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koki-187/200-sub000/internal/domain"
)

// defaultFieldConfidence is applied when the model reports a value without
// a usable confidence, rather than dropping the field.
const defaultFieldConfidence = 0.5

func extractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are reading a Japanese real-estate property document ")
	b.WriteString("(registry extract, sales flyer or survey report).\n")
	b.WriteString("Extract the following fields and answer with a single JSON object.\n")
	b.WriteString("Each present field must be an object {\"value\": string, \"confidence\": number in [0,1]}.\n")
	b.WriteString("Omit fields that are not on the document. Do not invent values.\n")
	b.WriteString("Fields:\n")
	for _, field := range domain.ExtractionFields {
		b.WriteString("- ")
		b.WriteString(field)
		b.WriteString("\n")
	}
	return b.String()
}

// rawField tolerates the two shapes seen in the wild: a full
// {value, confidence} object or a bare string.
type rawField struct {
	Value      string
	Confidence *float64
}

func (f *rawField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Value = s
		return nil
	}
	var obj struct {
		Value      string   `json:"value"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Value = obj.Value
	f.Confidence = obj.Confidence
	return nil
}

// parseFields decodes the model's JSON answer into the recognized field
// set, normalizing confidences into [0,1].
func parseFields(text string) (map[string]domain.FieldValue, error) {
	cleaned := stripCodeFence(text)
	var raw map[string]rawField
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("malformed model output: %w", err)
	}

	recognized := make(map[string]struct{}, len(domain.ExtractionFields))
	for _, field := range domain.ExtractionFields {
		recognized[field] = struct{}{}
	}

	fields := make(map[string]domain.FieldValue)
	for name, rf := range raw {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := recognized[key]; !ok {
			continue
		}
		value := strings.TrimSpace(rf.Value)
		if value == "" {
			continue
		}
		confidence := defaultFieldConfidence
		if rf.Confidence != nil {
			confidence = clamp01(*rf.Confidence)
		}
		fields[key] = domain.FieldValue{Value: value, Confidence: confidence}
	}
	return fields, nil
}

// stripCodeFence removes a markdown ```json fence some models wrap around
// structured answers even when asked for raw JSON.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
