package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/PabloGalante/lawyrs-chat/internal/app/memories"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
)

type citationLinksResponse struct {
	Citation string         `json:"citation"`
	Kind     citation.Kind  `json:"kind"`
	Style    string         `json:"style"`
	Links    citation.Links `json:"links"`
	Badge    string         `json:"badge"`
}

// /dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rec := s.chats.App().Reconciler
	if rec == nil {
		writeJSON(w, http.StatusOK, domain.DashboardSummary{})
		return
	}
	sum, err := rec.Cache().PrimeIfNeeded(r.Context())
	if err != nil {
		badGateway(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// /dashboard/refresh forces a full reload from the source of truth.
func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	rec := s.chats.App().Reconciler
	if rec == nil {
		writeJSON(w, http.StatusOK, domain.DashboardSummary{})
		return
	}
	sum, err := rec.Cache().Refresh(r.Context())
	if err != nil {
		badGateway(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// /memories?q=&matter_id=
func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := domain.MemoryQuery{
		Text:     r.URL.Query().Get("q"),
		MatterID: domain.MatterID(r.URL.Query().Get("matter_id")),
	}
	entries, err := s.memories.Browse(r.Context(), q)
	if err != nil {
		badGateway(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": entries})
}

// /memories/{id}
func (s *Server) handleMemoryWithID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/memories/")
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	err := s.memories.Delete(r.Context(), domain.MemoryID(id))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, memories.ErrMissingID):
		badRequest(w, "memory id is required")
	case errors.Is(err, domain.ErrMemoryNotFound):
		notFound(w, "memory not found")
	default:
		badGateway(w, err)
	}
}

// /citations/links?citation=&kind=
func (s *Server) handleCitationLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cite := r.URL.Query().Get("citation")
	kind := citation.ParseKind(r.URL.Query().Get("kind"))
	writeJSON(w, http.StatusOK, citationLinksResponse{
		Citation: cite,
		Kind:     kind,
		Style:    citation.Style(kind),
		Links:    citation.Generate(cite, kind),
		Badge:    citation.Badge(cite, kind),
	})
}

// /citations/verify?citation=
func (s *Server) handleCitationVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cite := strings.TrimSpace(r.URL.Query().Get("citation"))
	if cite == "" {
		badRequest(w, "citation is required")
		return
	}
	check, err := s.chats.App().Backend.VerifyCitation(r.Context(), cite)
	if err != nil {
		badGateway(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
