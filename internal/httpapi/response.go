package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/lobby"
	"github.com/DoyleJ11/bot-draft-backend/pkg/types"
)

var errInvalidInput = errors.New("invalid input")

type mappedError struct {
	HTTPStatus int
	Code       string
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	mapped := mapError(err)
	writeJSON(w, mapped.HTTPStatus, types.ErrorResponse{Code: mapped.Code, Error: err.Error()})
}

func mapError(err error) mappedError {
	switch {
	case errors.Is(err, errInvalidInput):
		return mappedError{HTTPStatus: http.StatusBadRequest, Code: "invalid_input"}
	case errors.Is(err, engine.ErrWrongTurn),
		errors.Is(err, engine.ErrSlotAlreadyFilled),
		errors.Is(err, engine.ErrEntityAlreadyTaken),
		errors.Is(err, engine.ErrInvalidState):
		return mappedError{HTTPStatus: http.StatusConflict, Code: engine.ErrorCode(err)}
	case errors.Is(err, engine.ErrEntityUnavailable):
		return mappedError{HTTPStatus: http.StatusUnprocessableEntity, Code: engine.ErrorCode(err)}
	case errors.Is(err, engine.ErrOutOfRange), errors.Is(err, engine.ErrInvalidConfig):
		return mappedError{HTTPStatus: http.StatusBadRequest, Code: engine.ErrorCode(err)}
	case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, engine.ErrTeamNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Code: engine.ErrorCode(err)}
	case errors.Is(err, lobby.ErrClosed):
		return mappedError{HTTPStatus: http.StatusServiceUnavailable, Code: "draft_unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return mappedError{HTTPStatus: http.StatusGatewayTimeout, Code: "timeout"}
	default:
		return mappedError{HTTPStatus: http.StatusInternalServerError, Code: "internal"}
	}
}

// decodeJSON reads a single JSON body into dst and validates it.
func decodeJSON(ctx context.Context, r *http.Request, v *validator.Validate, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errInvalidInput, err)
	}
	if err := v.StructCtx(ctx, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return nil
}
