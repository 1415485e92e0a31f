package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/P1T0NN/cristian-website-sub000/services"
	"github.com/shopspring/decimal"
)

type UserHandler struct {
	actorService *services.ActorService
	userService  *services.UserService
}

func NewUserHandler(actorService *services.ActorService, userService *services.UserService) *UserHandler {
	return &UserHandler{
		actorService: actorService,
		userService:  userService,
	}
}

func (h *UserHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	user, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"user": user}, nil)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	user, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"user": user}, nil)
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.userService.Search(r.Context(), query, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"users": users}, nil)
}

// UploadAvatar принимает multipart-форму с полем "avatar".
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	const maxAvatarSize = 5 << 20 // 5MB
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		badRequestResponse(w, errors.New("invalid multipart form or file too large"))
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		badRequestResponse(w, errors.New("avatar file is required"))
		return
	}
	defer file.Close()

	location, err := h.userService.UploadAvatar(r.Context(), userID, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"avatar_url": location}, nil)
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	if err := h.userService.DeleteAvatar(r.Context(), userID); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, nil)
}

func (h *UserHandler) resolveActor(w http.ResponseWriter, r *http.Request) (services.ActorContext, bool) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return services.ActorContext{}, false
	}
	actor, err := h.actorService.Resolve(r.Context(), userID, 0)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return services.ActorContext{}, false
	}
	return actor, true
}

func readAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var input struct {
		Amount string `json:"amount"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		badRequestResponse(w, errors.New("invalid amount"))
		return decimal.Zero, false
	}
	return amount, true
}

// TopUpBalance — админ заносит наличные на баланс игрока.
func (h *UserHandler) TopUpBalance(w http.ResponseWriter, r *http.Request) {
	targetID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	amount, ok := readAmount(w, r)
	if !ok {
		return
	}
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	balance, err := h.userService.TopUpBalance(r.Context(), actor, targetID, amount)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, map[string]interface{}{"updatedBalance": balance})
}

func (h *UserHandler) SettleDebt(w http.ResponseWriter, r *http.Request) {
	targetID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	amount, ok := readAmount(w, r)
	if !ok {
		return
	}
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	debt, err := h.userService.SettlePlayerDebt(r.Context(), actor, targetID, amount)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, nil, map[string]interface{}{"remainingDebt": debt})
}

// MyLedger — собственная денежная история текущего пользователя.
func (h *UserHandler) MyLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := middlewareUserID(r)
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	entries, err := h.userService.LedgerHistory(r.Context(), actor, userID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"entries": entries}, nil)
}

func (h *UserHandler) LedgerHistory(w http.ResponseWriter, r *http.Request) {
	targetID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	entries, err := h.userService.LedgerHistory(r.Context(), actor, targetID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	successResponse(w, http.StatusOK, map[string]interface{}{"entries": entries}, nil)
}
