package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/cache"
	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/P1T0NN/cristian-website-sub000/services"
)

type MatchHandler struct {
	actorService *services.ActorService
	matchService *services.MatchService
	cache        cache.Invalidator
}

func NewMatchHandler(actorService *services.ActorService, matchService *services.MatchService, invalidator cache.Invalidator) *MatchHandler {
	return &MatchHandler{
		actorService: actorService,
		matchService: matchService,
		cache:        invalidator,
	}
}

func matchDetailsCacheKey(matchID int) string {
	return fmt.Sprintf("match-details:%d", matchID)
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter repositories.ListMatchesFilter
	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		switch status {
		case models.MatchStatusActive, models.MatchStatusPending,
			models.MatchStatusFinished, models.MatchStatusCancelled:
			filter.Status = &status
		default:
			badRequestResponse(w, fmt.Errorf("unknown match status %q", raw))
			return
		}
	}
	for name, dst := range map[string]**time.Time{"from": &filter.FromDay, "to": &filter.ToDay} {
		if raw := query.Get(name); raw != "" {
			day, err := time.Parse("2006-01-02", raw)
			if err != nil {
				badRequestResponse(w, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", name))
				return
			}
			*dst = &day
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequestResponse(w, fmt.Errorf("invalid limit parameter"))
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			badRequestResponse(w, fmt.Errorf("invalid offset parameter"))
			return
		}
		filter.Offset = offset
	}

	matches, err := h.matchService.ListMatches(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"matches": matches}, nil)
}

// Get отдаёт матч с составами по командам. Ответ кэшируется по тегу
// матча и сбрасывается любой мутацией состава.
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	cacheKey := matchDetailsCacheKey(matchID)
	if h.cache != nil {
		if cached, ok := h.cache.Get(cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	details, err := h.matchService.GetMatchDetails(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	env := responseEnvelope{Success: true, Data: map[string]interface{}{"match": details.Match, "teams": details.Teams}}
	if h.cache != nil {
		if js, err := json.Marshal(env); err == nil {
			h.cache.Set(cacheKey, append(js, '\n'), fmt.Sprintf("match:%d", matchID), "matches")
		}
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *MatchHandler) resolveActor(w http.ResponseWriter, r *http.Request, matchID int) (services.ActorContext, bool) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return services.ActorContext{}, false
	}
	actor, err := h.actorService.Resolve(r.Context(), userID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return services.ActorContext{}, false
	}
	return actor, true
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.MatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(w, r, 0)
	if !ok {
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusCreated, map[string]interface{}{"match": match}, nil)
}

func (h *MatchHandler) Edit(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input services.MatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(w, r, matchID)
	if !ok {
		return
	}

	match, err := h.matchService.EditMatch(r.Context(), actor, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"match": match}, nil)
}

func (h *MatchHandler) Finish(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(w, r, matchID)
	if !ok {
		return
	}

	if err := h.matchService.FinishMatch(r.Context(), actor, matchID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *MatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(w, r, matchID)
	if !ok {
		return
	}

	if err := h.matchService.DeleteMatch(r.Context(), actor, matchID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}
