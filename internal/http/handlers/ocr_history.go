package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koki-187/200-sub000/internal/domain"
)

type historyView struct {
	ID              string               `json:"id"`
	FileNames       []string             `json:"file_names"`
	ExtractedData   domain.ExtractedData `json:"extracted_data"`
	ConfidenceScore float64              `json:"confidence_score"`
	CreatedAt       time.Time            `json:"created_at"`
}

func viewHistory(rec domain.HistoryRecord) historyView {
	return historyView{
		ID:              rec.ID,
		FileNames:       rec.FileNames,
		ExtractedData:   rec.ExtractedData,
		ConfidenceScore: rec.ConfidenceScore,
		CreatedAt:       rec.CreatedAt,
	}
}

// ListOCRHistory serves the filtered, sorted, paginated archive.
func (a *App) ListOCRHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	q, err := parseHistoryQuery(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	records, total, err := a.History.List(r.Context(), ownerID, q)
	if err != nil {
		a.domainError(w, err)
		return
	}

	views := make([]historyView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewHistory(rec))
	}
	a.json(w, http.StatusOK, map[string]any{"histories": views, "total": total})
}

// SaveOCRHistory snapshots a completed job's result on explicit request,
// the manual path for users who keep auto-save off.
func (a *App) SaveOCRHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.JobID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	rec, err := a.Orchestrator.SaveHistory(r.Context(), req.JobID, ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"history": viewHistory(*rec)})
}

// DeleteOCRHistory removes one archived record, irreversibly.
func (a *App) DeleteOCRHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := a.History.GetByID(r.Context(), id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if rec.OwnerID != ownerID {
		a.domainError(w, domain.ErrForbidden)
		return
	}
	if err := a.History.Delete(r.Context(), id); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parseHistoryQuery(r *http.Request) (domain.HistoryQuery, error) {
	values := r.URL.Query()
	q := domain.HistoryQuery{
		Search: strings.TrimSpace(values.Get("search")),
		SortBy: domain.HistorySortDateDesc,
	}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errInvalidParam("limit")
		}
		q.Limit = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errInvalidParam("offset")
		}
		q.Offset = n
	}
	if v := values.Get("minConfidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, errInvalidParam("minConfidence")
		}
		q.MinConfidence = &f
	}
	if v := values.Get("maxConfidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, errInvalidParam("maxConfidence")
		}
		q.MaxConfidence = &f
	}
	if v := values.Get("dateFrom"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return q, errInvalidParam("dateFrom")
		}
		q.DateFrom = &t
	}
	if v := values.Get("dateTo"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return q, errInvalidParam("dateTo")
		}
		q.DateTo = &t
	}
	if v := values.Get("sortBy"); v != "" {
		switch domain.HistorySort(v) {
		case domain.HistorySortDateDesc, domain.HistorySortDateAsc,
			domain.HistorySortConfidenceDesc, domain.HistorySortConfidenceAsc:
			q.SortBy = domain.HistorySort(v)
		default:
			return q, errInvalidParam("sortBy")
		}
	}
	return q, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

type errInvalidParam string

func (e errInvalidParam) Error() string {
	return "invalid query parameter: " + string(e)
}
