package web

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/crmimport/internal/core"
	"github.com/JonMunkholm/crmimport/internal/ledger"
)

// maxListLimit caps the limit query parameter.
const maxListLimit = 500

// EntityResponse describes one registered entity.
type EntityResponse struct {
	Key         string   `json:"key"`
	Object      string   `json:"object"`
	Label       string   `json:"label"`
	MappingFile string   `json:"mappingFile,omitempty"`
	ImportID    string   `json:"importIdField"`
	Required    []string `json:"required"`
	References  []string `json:"references,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"ledger": s.runs != nil,
	})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	out := make([]EntityResponse, 0, len(defs))
	for _, def := range defs {
		e := EntityResponse{
			Key:         def.Info.Key,
			Object:      def.Info.Object,
			Label:       def.Info.Label,
			MappingFile: def.MappingFile,
			ImportID:    def.ExternalIDField(),
			Required:    def.RequiredFields(),
		}
		for _, ref := range def.References {
			if !slices.Contains(e.References, ref.Table) {
				e.References = append(e.References, ref.Table)
			}
		}
		out = append(out, e)
	}
	writeJSON(w, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, r, ErrLedgerDisabled)
		return
	}

	q := r.URL.Query()
	filter := ledger.RunFilter{
		Entity: q.Get("entity"),
		Status: q.Get("status"),
	}
	var err error
	if filter.Limit, filter.Offset, err = pageParams(r); err != nil {
		respondError(w, r, err)
		return
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, r, &badRequest{msg: "since must be an RFC 3339 timestamp"})
			return
		}
		filter.Since = t
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, r, ErrLedgerDisabled)
		return
	}

	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, r, ErrLedgerDisabled)
		return
	}

	runID := chi.URLParam(r, "runID")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		respondError(w, r, err)
		return
	}
	chunks, err := s.runs.ListChunks(r.Context(), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, chunks)
}

func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, r, ErrLedgerDisabled)
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	runID := chi.URLParam(r, "runID")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		respondError(w, r, err)
		return
	}
	failures, err := s.runs.ListFailures(r.Context(), runID, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, failures)
}

// pageParams parses the limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = ledger.DefaultListLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, &badRequest{msg: "limit must be a positive integer"}
		}
		limit = min(limit, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, &badRequest{msg: "offset must be a non-negative integer"}
		}
	}
	return limit, offset, nil
}
