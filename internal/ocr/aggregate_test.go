package ocr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koki-187/200-sub000/internal/domain"
)

func TestAggregateHighestConfidenceWins(t *testing.T) {
	results := []FileResult{
		{Index: 0, FileName: "a.png", Fields: map[string]domain.FieldValue{
			domain.FieldLocation: {Value: "Setagaya-ku", Confidence: 0.95},
			domain.FieldPrice:    {Value: "85,000,000", Confidence: 0.60},
		}},
		{Index: 1, FileName: "b.png", Fields: map[string]domain.FieldValue{
			domain.FieldLocation: {Value: "Setagaya", Confidence: 0.88},
			domain.FieldPrice:    {Value: "85,000,000 JPY", Confidence: 0.90},
		}},
		{Index: 2, FileName: "c.png", Err: errors.New("extraction failed")},
	}

	data := Aggregate(results)
	require.Equal(t, "Setagaya-ku", data.Fields[domain.FieldLocation].Value)
	require.Equal(t, 0.95, data.Fields[domain.FieldLocation].Confidence)
	require.Equal(t, "85,000,000 JPY", data.Fields[domain.FieldPrice].Value)
	require.InDelta(t, (0.95+0.90)/2, data.OverallConfidence, 1e-9)
}

func TestAggregateTieBreaksOnEarliestFile(t *testing.T) {
	results := []FileResult{
		{Index: 1, Fields: map[string]domain.FieldValue{
			domain.FieldZoning: {Value: "second file", Confidence: 0.8},
		}},
		{Index: 0, Fields: map[string]domain.FieldValue{
			domain.FieldZoning: {Value: "first file", Confidence: 0.8},
		}},
	}

	data := Aggregate(results)
	require.Equal(t, "first file", data.Fields[domain.FieldZoning].Value)
}

func TestAggregateSkipsEmptyValues(t *testing.T) {
	results := []FileResult{
		{Index: 0, Fields: map[string]domain.FieldValue{
			domain.FieldStation: {Value: "", Confidence: 0.99},
			domain.FieldYield:   {Value: "4.2%", Confidence: 0.7},
		}},
	}

	data := Aggregate(results)
	_, ok := data.Fields[domain.FieldStation]
	require.False(t, ok, "empty values must not be aggregated")
	require.InDelta(t, 0.7, data.OverallConfidence, 1e-9)
}

func TestAggregateUnpopulatedFieldsExcludedFromAverage(t *testing.T) {
	results := []FileResult{
		{Index: 0, Fields: map[string]domain.FieldValue{
			domain.FieldPropertyName: {Value: "Sunny Heights", Confidence: 1.0},
		}},
	}

	data := Aggregate(results)
	require.Len(t, data.Fields, 1)
	// One populated field at 1.0: the 16 absent fields must not drag the
	// average toward zero.
	require.Equal(t, 1.0, data.OverallConfidence)
}

func TestAggregateAllFailed(t *testing.T) {
	results := []FileResult{
		{Index: 0, Err: errors.New("boom")},
		{Index: 1, Err: errors.New("boom")},
	}

	data := Aggregate(results)
	require.Empty(t, data.Fields)
	require.Zero(t, data.OverallConfidence)
}
