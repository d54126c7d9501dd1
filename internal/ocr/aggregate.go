package ocr

import "github.com/koki-187/200-sub000/internal/domain"

// FileResult is the outcome of one file's extraction attempt, tagged with
// its submission index.
type FileResult struct {
	Index    int
	FileName string
	Fields   map[string]domain.FieldValue
	Err      error
}

// Aggregate folds the per-file extractions of one job into a single
// ExtractedData. For each field the highest-confidence non-empty value
// wins; on equal confidence the earliest file index is kept. The overall
// confidence is the arithmetic mean over fields that received a value;
// fields never populated are excluded from the average rather than
// counted as zero.
func Aggregate(results []FileResult) *domain.ExtractedData {
	type pick struct {
		value domain.FieldValue
		index int
	}
	best := make(map[string]pick)

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for name, fv := range res.Fields {
			if fv.Value == "" {
				continue
			}
			cur, ok := best[name]
			if !ok || fv.Confidence > cur.value.Confidence ||
				(fv.Confidence == cur.value.Confidence && res.Index < cur.index) {
				best[name] = pick{value: fv, index: res.Index}
			}
		}
	}

	fields := make(map[string]domain.FieldValue, len(best))
	var sum float64
	for name, p := range best {
		fields[name] = p.value
		sum += p.value.Confidence
	}

	overall := 0.0
	if len(fields) > 0 {
		overall = sum / float64(len(fields))
	}
	return &domain.ExtractedData{Fields: fields, OverallConfidence: overall}
}
