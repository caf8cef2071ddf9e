package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/example/camp-occupancy/internal/application"
)

type siteDirectory interface {
	ListSites(ctx context.Context) ([]application.Site, error)
}

type SiteHandler struct {
	directory siteDirectory
	responder responder
	logger    *slog.Logger
}

func NewSiteHandler(directory siteDirectory, logger *slog.Logger) *SiteHandler {
	base := defaultLogger(logger)
	return &SiteHandler{directory: directory, responder: newResponder(base), logger: base}
}

// List handles GET /sites.
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.directory == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	logger := handlerLogger(r.Context(), h.logger, "SiteHandler", "List", "principal_id", principal.UserID)

	sites, err := h.directory.ListSites(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "site list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	collator := newCollator()
	sort.SliceStable(sites, func(i, j int) bool {
		return collator.CompareString(sites[i].Name, sites[j].Name) < 0
	})

	out := make([]siteDTO, 0, len(sites))
	for _, site := range sites {
		out = append(out, siteDTO{ID: site.ID, Name: site.Name})
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "sites listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSitesResponse{Sites: out})
}

type siteDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listSitesResponse struct {
	Sites []siteDTO `json:"sites"`
}

// newCollator returns a Turkish collator. Collators keep internal buffers, so
// each request gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Turkish)
}

func sortSiteNames(names []string) {
	newCollator().SortStrings(names)
}
