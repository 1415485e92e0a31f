package handlers

import (
	"context"
	"net/http"

	"github.com/P1T0NN/cristian-website-sub000/middleware"
	"github.com/P1T0NN/cristian-website-sub000/services"
	"github.com/go-chi/chi/v5"
)

// RosterHandler — операции над составом матча: вход, выход, друзья,
// замены, флаги оплаты, места.
type RosterHandler struct {
	actorService        *services.ActorService
	rosterService       *services.RosterService
	substitutionService *services.SubstitutionService
}

func NewRosterHandler(
	actorService *services.ActorService,
	rosterService *services.RosterService,
	substitutionService *services.SubstitutionService,
) *RosterHandler {
	return &RosterHandler{
		actorService:        actorService,
		rosterService:       rosterService,
		substitutionService: substitutionService,
	}
}

// resolveActor достаёт user_id из токена и строит ActorContext c
// разрешённым флагом матч-админа. При ошибке сам пишет ответ.
func (h *RosterHandler) resolveActor(ctx context.Context, w http.ResponseWriter, r *http.Request, matchID int) (services.ActorContext, bool) {
	userID, err := middleware.GetUserIDFromContext(ctx)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return services.ActorContext{}, false
	}
	actor, err := h.actorService.Resolve(ctx, userID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return services.ActorContext{}, false
	}
	return actor, true
}

func joinMetadata(placesOccupied int, result *services.JoinResult) map[string]interface{} {
	metadata := map[string]interface{}{"updatedPlacesOccupied": placesOccupied}
	if result != nil && result.UpdatedBalance != nil {
		metadata["updatedBalance"] = *result.UpdatedBalance
	}
	return metadata
}

func (h *RosterHandler) Join(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		TeamNumber  int  `json:"team_number"`
		WithBalance bool `json:"with_balance"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	result, err := h.rosterService.JoinMatch(r.Context(), actor, matchID, input.TeamNumber, input.WithBalance)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	successResponse(w, http.StatusCreated,
		map[string]interface{}{"entry": result.Entry},
		joinMetadata(result.PlacesOccupied, result))
}

func (h *RosterHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		TeamNumber int                         `json:"team_number"`
		Friend     services.NewTemporaryPlayer `json:"friend"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	result, err := h.rosterService.AddFriend(r.Context(), actor, matchID, input.TeamNumber, input.Friend)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	successResponse(w, http.StatusCreated,
		map[string]interface{}{"entry": result.Entry},
		joinMetadata(result.PlacesOccupied, result))
}

// Leave обслуживает и собственный выход (маршрут без entryID), и
// удаление конкретного места (друга или, для админа, любого игрока).
// Снятие друга помечается query-параметром friend=true.
func (h *RosterHandler) Leave(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	entryID := 0
	if chi.URLParam(r, "entryID") != "" {
		if entryID, err = urlParamInt(r, "entryID"); err != nil {
			badRequestResponse(w, err)
			return
		}
	}
	isRemovingFriend := r.URL.Query().Get("friend") == "true"

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	result, err := h.rosterService.LeaveMatch(r.Context(), actor, matchID, entryID, isRemovingFriend)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	metadata := map[string]interface{}{"updatedPlacesOccupied": result.PlacesOccupied}
	if result.UpdatedBalance != nil {
		metadata["updatedBalance"] = *result.UpdatedBalance
	}
	successResponse(w, http.StatusOK, nil, metadata)
}

func (h *RosterHandler) AdminAddPlayers(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		TeamNumber int                           `json:"team_number"`
		Players    []services.NewTemporaryPlayer `json:"players"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	entries, placesOccupied, err := h.rosterService.AdminAddPlayers(r.Context(), actor, matchID, input.TeamNumber, input.Players)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	successResponse(w, http.StatusCreated,
		map[string]interface{}{"entries": entries},
		map[string]interface{}{"updatedPlacesOccupied": placesOccupied})
}

func (h *RosterHandler) SwitchTeam(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.rosterService.SwitchTeam(r.Context(), actor, matchID, entryID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *RosterHandler) SetPaymentFlag(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		Action string `json:"action"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	entry, err := h.rosterService.SetPaymentFlag(r.Context(), actor, matchID, entryID, services.PaymentAction(input.Action))
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"entry": entry}, nil)
}

func (h *RosterHandler) SetMatchAdmin(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		Grant bool `json:"grant"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.rosterService.SetMatchAdmin(r.Context(), actor, matchID, entryID, input.Grant); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *RosterHandler) AdjustExtraSpots(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	team, err := urlParamInt(r, "team")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		Delta int `json:"delta"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.rosterService.AdjustExtraSpots(r.Context(), actor, matchID, team, input.Delta); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *RosterHandler) SetBlockedSpots(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	team, err := urlParamInt(r, "team")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		Value int `json:"value"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.rosterService.SetBlockedSpots(r.Context(), actor, matchID, team, input.Value); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *RosterHandler) RequestSubstitute(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.substitutionService.RequestSubstitute(r.Context(), actor, matchID, entryID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *RosterHandler) CancelSubstituteRequest(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	if err := h.substitutionService.CancelSubstituteRequest(r.Context(), actor, matchID, entryID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

// ReplacePlayer — вход на место, помеченное как ищущее замену.
func (h *RosterHandler) ReplacePlayer(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entryID, err := urlParamInt(r, "entryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input struct {
		WithBalance bool `json:"with_balance"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, ok := h.resolveActor(r.Context(), w, r, matchID)
	if !ok {
		return
	}

	result, err := h.substitutionService.ReplacePlayer(r.Context(), actor, matchID, entryID, input.WithBalance)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	metadata := map[string]interface{}{"updatedPlacesOccupied": result.PlacesOccupied}
	if result.UpdatedBalance != nil {
		metadata["updatedBalance"] = *result.UpdatedBalance
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"entry": result.Entry}, metadata)
}
