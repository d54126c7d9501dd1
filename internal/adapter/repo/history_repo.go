package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/koki-187/200-sub000/internal/domain"
)

// HistoryRepositoryPG implements domain.HistoryRepository.
type HistoryRepositoryPG struct {
	db DB
}

// NewHistoryRepository creates a history repository backed by PostgreSQL.
func NewHistoryRepository(db DB) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{db: db}
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Create appends one archived extraction.
func (r *HistoryRepositoryPG) Create(ctx context.Context, rec *domain.HistoryRecord) error {
	payload, err := json.Marshal(rec.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	query := `
INSERT INTO ocr_history (id, owner_id, file_names, extracted_data, confidence_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err = r.db.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.FileNames,
		payload,
		rec.ConfidenceScore,
		rec.CreatedAt,
	)
	return err
}

// GetByID fetches a single archived record.
func (r *HistoryRepositoryPG) GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	query := `
SELECT id, owner_id, file_names, extracted_data, confidence_score, created_at
FROM ocr_history
WHERE id = $1;
`
	return scanHistory(r.db.QueryRow(ctx, query, id))
}

// List returns one page of the owner's archive plus the total count for
// the active filter.
func (r *HistoryRepositoryPG) List(ctx context.Context, ownerID string, q domain.HistoryQuery) ([]domain.HistoryRecord, int, error) {
	where, args := historyFilter(ownerID, q)

	var total int
	countQuery := `SELECT COUNT(*) FROM ocr_history ` + where + `;`
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery, listArgs := buildHistoryListQuery(where, args, q)
	rows, err := r.db.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Delete removes one record. Deletion is irreversible.
func (r *HistoryRepositoryPG) Delete(ctx context.Context, id string) error {
	query := `
DELETE FROM ocr_history
WHERE id = $1;
`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// historyFilter builds the WHERE clause shared by the count and list
// queries. Free-text search covers the property name and location field
// values of the stored extraction.
func historyFilter(ownerID string, q domain.HistoryQuery) (string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}

	next := func() int { return len(args) + 1 }

	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + s + "%"
		conds = append(conds, fmt.Sprintf(
			"(extracted_data #>> '{fields,property_name,value}' ILIKE $%d OR extracted_data #>> '{fields,location,value}' ILIKE $%d)",
			next(), next()))
		args = append(args, pattern)
	}
	if q.MinConfidence != nil {
		conds = append(conds, fmt.Sprintf("confidence_score >= $%d", next()))
		args = append(args, *q.MinConfidence)
	}
	if q.MaxConfidence != nil {
		conds = append(conds, fmt.Sprintf("confidence_score <= $%d", next()))
		args = append(args, *q.MaxConfidence)
	}
	if q.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", next()))
		args = append(args, *q.DateFrom)
	}
	if q.DateTo != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", next()))
		args = append(args, *q.DateTo)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func buildHistoryListQuery(where string, args []any, q domain.HistoryQuery) (string, []any) {
	order := "created_at DESC"
	switch q.SortBy {
	case domain.HistorySortDateAsc:
		order = "created_at ASC"
	case domain.HistorySortConfidenceDesc:
		order = "confidence_score DESC, created_at DESC"
	case domain.HistorySortConfidenceAsc:
		order = "confidence_score ASC, created_at DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	listArgs := append(append([]any(nil), args...), limit, offset)
	query := fmt.Sprintf(`
SELECT id, owner_id, file_names, extracted_data, confidence_score, created_at
FROM ocr_history
%s
ORDER BY %s
LIMIT $%d OFFSET $%d;
`, where, order, len(listArgs)-1, len(listArgs))
	return query, listArgs
}

func scanHistory(row pgx.Row) (*domain.HistoryRecord, error) {
	var (
		rec     domain.HistoryRecord
		payload []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.FileNames,
		&payload,
		&rec.ConfidenceScore,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.ExtractedData); err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}
	return &rec, nil
}
