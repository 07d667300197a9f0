package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/discovery"
	"github.com/sells-group/leadhunter/internal/export"
	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/internal/query"
	"github.com/sells-group/leadhunter/internal/scorer"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"keys":   s.keys,
	})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	p, err := query.ParseParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.tracker.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := query.Run(items, p.Filter, p.Page, p.PerPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var rec mapper.ManualRecord
	if err := decode(w, r, &rec); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.mapper.Map(rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.Create(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	b, err := s.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.tracker.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// leadPatch carries contact detail edits. Absent fields are left alone and
// an empty string clears an optional field.
type leadPatch struct {
	Name       *string `json:"name"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Sector     *string `json:"sector"`
}

func (p leadPatch) validate() error {
	if p.Phone != nil && strings.TrimSpace(*p.Phone) != "" && !normalize.ValidPhone(*p.Phone) {
		return &model.ValidationError{Field: "phone", Reason: "not a French phone number"}
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) != "" && !normalize.ValidEmail(strings.TrimSpace(*p.Email)) {
		return &model.ValidationError{Field: "email", Reason: "malformed"}
	}
	return nil
}

func (p leadPatch) apply(b *model.Business, sector model.Sector) {
	if p.Name != nil {
		b.Name = strings.TrimSpace(*p.Name)
	}
	if p.Address != nil {
		b.Address = normalize.StringPtr(*p.Address)
	}
	if p.City != nil {
		b.City = strings.TrimSpace(*p.City)
	}
	if p.PostalCode != nil {
		b.PostalCode = strings.TrimSpace(*p.PostalCode)
	}
	if p.Phone != nil {
		b.Phone = normalize.StringPtr(*p.Phone)
	}
	if p.Email != nil {
		b.Email = normalize.StringPtr(*p.Email)
	}
	if p.Sector != nil {
		b.Sector = sector
	}
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	var p leadPatch
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, r, err)
		return
	}
	var sector model.Sector
	if p.Sector != nil && strings.TrimSpace(*p.Sector) != "" {
		parsed, err := model.ParseSector(*p.Sector)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sector = parsed
	}
	b, err := s.tracker.Edit(r.Context(), chi.URLParam(r, "id"), func(b *model.Business) {
		p.apply(b, sector)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.tracker.Transition(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) setWebsite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Website *string `json:"website"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var website *string
	if req.Website != nil {
		website = normalize.StringPtr(normalize.NormalizeURL(*req.Website))
	}
	b, err := s.tracker.SetWebsite(r.Context(), chi.URLParam(r, "id"), website)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := s.tracker.AddNote(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) auditLead(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeError(w, r, eris.Wrap(errUnavailable, "website audits"))
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	b, err := s.tracker.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !b.HasWebsite() {
		writeError(w, r, &model.ValidationError{Field: "website", Reason: "lead has no website to audit"})
		return
	}
	a, err := s.auditor.Audit(ctx, *b.Website)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err = s.tracker.AttachAudit(ctx, id, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) auditLeads(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, r, eris.Wrap(errUnavailable, "audit batches"))
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, &model.ValidationError{Field: "ids", Reason: "must not be empty"})
		return
	}
	res, err := s.scanner.AuditBatch(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// auditResult is the answer to an ad-hoc audit of a URL.
type auditResult struct {
	Audit         *model.QualityAudit `json:"audit"`
	ProspectScore int                 `json:"prospect_score"`
	Priority      scorer.Priority     `json:"priority"`
	NeedsRedesign bool                `json:"needs_redesign"`
}

func (s *Server) auditURL(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeError(w, r, eris.Wrap(errUnavailable, "website audits"))
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, r, &model.ValidationError{Field: "url", Reason: "is required"})
		return
	}
	a, err := s.auditor.Audit(r.Context(), normalize.NormalizeURL(req.URL))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := a.Factors()
	score := scorer.Score(f)
	writeJSON(w, http.StatusOK, auditResult{
		Audit:         a,
		ProspectScore: score,
		Priority:      scorer.PriorityFromScore(score),
		NeedsRedesign: scorer.NeedsRedesign(f),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	items, err := s.tracker.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.ComputeStats(items, s.now()))
}

// exportXLSX writes every lead matching the list filters, ignoring
// pagination, as a workbook download.
func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	p, err := query.ParseParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.tracker.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	matched := make([]*model.Business, 0, len(items))
	for _, b := range items {
		if p.Filter.Match(b) {
			matched = append(matched, b)
		}
	}
	now := s.now()
	f, err := export.Workbook(matched, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(now)))
	if err := f.Write(w); err != nil {
		writeError(w, r, eris.Wrap(err, "api: write export"))
	}
}

func (s *Server) scanPlaces(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, r, eris.Wrap(errUnavailable, "places scans"))
		return
	}
	var req discovery.PlacesRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.scanner.Places(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) scanRegistry(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, r, eris.Wrap(errUnavailable, "registry scans"))
		return
	}
	var req discovery.RegistryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.scanner.Registry(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
