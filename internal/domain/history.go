package domain

import "time"

// HistoryRecord is one archived extraction. Records are append-only and
// deleted only by explicit user action.
type HistoryRecord struct {
	ID              string
	OwnerID         string
	FileNames       []string
	ExtractedData   ExtractedData
	ConfidenceScore float64
	CreatedAt       time.Time
}

// HistorySort enumerates supported orderings for history queries.
type HistorySort string

const (
	HistorySortDateDesc       HistorySort = "date_desc"
	HistorySortDateAsc        HistorySort = "date_asc"
	HistorySortConfidenceDesc HistorySort = "confidence_desc"
	HistorySortConfidenceAsc  HistorySort = "confidence_asc"
)

// HistoryQuery carries the filter, sort and pagination parameters for
// listing archived extractions.
type HistoryQuery struct {
	Search        string
	MinConfidence *float64
	MaxConfidence *float64
	DateFrom      *time.Time
	DateTo        *time.Time
	SortBy        HistorySort
	Limit         int
	Offset        int
}

// Confidence bands used by history filtering in the UI.
const (
	ConfidenceHighMin   = 0.90
	ConfidenceMediumMin = 0.70
)
