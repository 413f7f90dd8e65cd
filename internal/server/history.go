package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mrsinham/dicompixel/internal/audit"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type listResponse struct {
	Records []audit.ConversionRecord `json:"records"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// ListConversions returns the most recent conversion records.
func (s *Server) ListConversions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	mode := ""
	if raw := q.Get("mode"); raw != "" {
		m, err := convert.ParseMode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m.String()
	}

	limit, err := queryInt(q.Get("limit"), defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		http.Error(w, "Invalid offset", http.StatusBadRequest)
		return
	}

	records, err := s.history.List(ctx, mode, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list conversion records")
		http.Error(w, "Failed to list conversion records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []audit.ConversionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listResponse{Records: records, Limit: limit, Offset: offset})
}

// GetConversion returns the record of one request.
func (s *Server) GetConversion(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	rec, err := s.history.GetByRequestID(r.Context(), requestID)
	if errors.Is(err, audit.ErrNotFound) {
		http.Error(w, "Conversion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("conversion_id", requestID).Msg("Failed to get conversion record")
		http.Error(w, "Failed to get conversion record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
