package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/service"
	"github.com/trade-history-sync/internal/types"
)

// leagueParam returns the trimmed {league} path variable
func leagueParam(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["league"])
}

// localeParam reads ?locale=, unknown values fall back to English
func localeParam(r *http.Request) types.Locale {
	return locale.Normalize(r.URL.Query().Get("locale"))
}

// handleSync handles POST /api/leagues/{league}/sync - run one synchronization
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	league := leagueParam(r)
	if league == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "League parameter required", nil)
		return
	}
	l := localeParam(r)
	ctx := r.Context()
	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"league": league,
		"locale": string(l),
	})

	if s.deps.Migrator != nil {
		s.deps.Migrator.MigrateIfNeeded(ctx, l, league)
	}

	result, err := s.deps.Sync.Synchronize(ctx, league, l)
	if err != nil {
		log.WithError(err).Info("Synchronization request failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleHistory handles GET /api/leagues/{league}/history - read stored records
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	league := leagueParam(r)
	if league == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "League parameter required", nil)
		return
	}

	query := r.URL.Query()
	page, err := optionalPositiveInt(query.Get("page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid page parameter", nil)
		return
	}
	pageSize, err := optionalPositiveInt(query.Get("pageSize"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid pageSize parameter", nil)
		return
	}

	result, err := s.deps.History.History(r.Context(), &service.HistoryQuery{
		League:   league,
		Locale:   localeParam(r),
		TypeLine: query.Get("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("History read failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleLeagues handles GET /api/leagues - list leagues offered by the trade site
func (s *Server) handleLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.deps.Leagues.FetchLeagues(r.Context(), localeParam(r))
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("League list failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, leagues)
}

// handleCredentials handles GET /api/credentials - report session cookie presence
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.deps.Sync.Credentials(r.Context(), localeParam(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statuses)
}

// optionalPositiveInt parses s, treating empty as zero
func optionalPositiveInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
