package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/P1T0NN/cristian-website-sub000/middleware"
	"github.com/P1T0NN/cristian-website-sub000/services"
	"github.com/go-chi/chi/v5"
)

// Коды результата, на которые опирается клиент. Сообщение человекочитаемое,
// код — машиночитаемый.
const (
	codeUnauthorized        = "UNAUTHORIZED"
	codeMatchNotFound       = "MATCH_NOT_FOUND"
	codePlayerNotInMatch    = "PLAYER_NOT_IN_MATCH"
	codeUserNotFound        = "USER_NOT_FOUND"
	codeTeamFull            = "TEAM_FULL"
	codeMatchFull           = "MATCH_IS_FULL"
	codeNotEnoughSpots      = "NOT_ENOUGH_SPOTS_FOR_ALL_PLAYERS"
	codeAlreadyJoined       = "ALREADY_JOINED"
	codeAlreadyAddedFriend  = "ALREADY_ADDED_FRIEND"
	codeTooLateToLeave      = "TOO_LATE_TO_LEAVE"
	codeMatchStarted        = "MATCH_ALREADY_STARTED"
	codeInsufficientBalance = "INSUFFICIENT_BALANCE"
	codeDebtUpdateFailed    = "DEBT_UPDATE_FAILED"
	codeBadRequest          = "BAD_REQUEST"
	codeUnexpectedError     = "UNEXPECTED_ERROR"
)

// responseEnvelope — единый формат ответа API.
type responseEnvelope struct {
	Success  bool                   `json:"success"`
	Code     string                 `json:"code,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Data     interface{}            `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, env responseEnvelope) {
	js, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal JSON response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(js); err != nil {
		slog.Error("failed to write JSON response", slog.Any("error", err))
	}
}

func successResponse(w http.ResponseWriter, status int, data interface{}, metadata map[string]interface{}) {
	writeJSON(w, status, responseEnvelope{
		Success:  true,
		Data:     data,
		Metadata: metadata,
	})
}

func errorResponse(w http.ResponseWriter, status int, code, message string, metadata map[string]interface{}) {
	writeJSON(w, status, responseEnvelope{
		Success:  false,
		Code:     code,
		Message:  message,
		Metadata: metadata,
	})
}

func badRequestResponse(w http.ResponseWriter, err error) {
	errorResponse(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	errorResponse(w, http.StatusUnauthorized, codeUnauthorized, message, nil)
}

func serverErrorResponse(w http.ResponseWriter, err error) {
	slog.Error("internal server error", slog.Any("error", err))
	errorResponse(w, http.StatusInternalServerError, codeUnexpectedError,
		"the server encountered a problem and could not process your request", nil)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в код ответа.
// TOO_LATE_TO_LEAVE несёт metadata.canRequestSubstitute, чтобы клиент
// сразу предложил запросить замену.
func mapServiceErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMatchNotFound):
		errorResponse(w, http.StatusNotFound, codeMatchNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrPlayerNotInMatch):
		errorResponse(w, http.StatusNotFound, codePlayerNotInMatch, err.Error(), nil)
	case errors.Is(err, services.ErrUserNotFound):
		errorResponse(w, http.StatusNotFound, codeUserNotFound, err.Error(), nil)

	case errors.Is(err, services.ErrTeamFull):
		errorResponse(w, http.StatusConflict, codeTeamFull, err.Error(), nil)
	case errors.Is(err, services.ErrMatchFull):
		errorResponse(w, http.StatusConflict, codeMatchFull, err.Error(), nil)
	case errors.Is(err, services.ErrNotEnoughSpots):
		errorResponse(w, http.StatusConflict, codeNotEnoughSpots, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyJoined):
		errorResponse(w, http.StatusConflict, codeAlreadyJoined, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyAddedFriend):
		errorResponse(w, http.StatusConflict, codeAlreadyAddedFriend, err.Error(), nil)
	case errors.Is(err, services.ErrMatchAlreadyStarted):
		errorResponse(w, http.StatusConflict, codeMatchStarted, err.Error(), nil)
	case errors.Is(err, services.ErrMatchAlreadyFinished):
		errorResponse(w, http.StatusConflict, codeBadRequest, err.Error(), nil)

	case errors.Is(err, services.ErrTooLateToLeave):
		errorResponse(w, http.StatusConflict, codeTooLateToLeave, err.Error(),
			map[string]interface{}{"canRequestSubstitute": true})

	case errors.Is(err, services.ErrInsufficientBalance):
		errorResponse(w, http.StatusPaymentRequired, codeInsufficientBalance, err.Error(), nil)
	case errors.Is(err, services.ErrDebtUpdateFailed):
		errorResponse(w, http.StatusInternalServerError, codeDebtUpdateFailed, err.Error(), nil)

	case errors.Is(err, services.ErrSpotsLimitExceeded),
		errors.Is(err, services.ErrSpotsOccupied),
		errors.Is(err, services.ErrTeamSwitchInPool),
		errors.Is(err, services.ErrMatchAdminRegular),
		errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrInvalidTeamNumber),
		errors.Is(err, services.ErrInvalidMatchType),
		errors.Is(err, services.ErrInvalidKickoff),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidPhoneNumber),
		errors.Is(err, services.ErrNoValidPlayers),
		errors.Is(err, services.ErrInvalidPaymentFlags),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrAvatarStorageDisabled):
		errorResponse(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)

	case errors.Is(err, services.ErrAuthenticationRequired),
		errors.Is(err, services.ErrAuthInvalidCredentials):
		unauthorizedResponse(w, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation):
		errorResponse(w, http.StatusForbidden, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, services.ErrAuthEmailTaken):
		errorResponse(w, http.StatusConflict, codeBadRequest, err.Error(), nil)

	default:
		serverErrorResponse(w, err)
	}
}

func middlewareUserID(r *http.Request) (int, error) {
	return middleware.GetUserIDFromContext(r.Context())
}

func urlParamInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return value, nil
}
