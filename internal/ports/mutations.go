package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/reporting"
)

const maxRequestBodySize = 64 * 1024

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(target)
	if err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

type editGoalNameRequest struct {
	Name string `json:"name"`
}

func MakeEditGoalNameHandler(
	editGoalName app.EditGoalName,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("edit_goal_name", writeLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		goalID := r.PathValue("id")

		var request editGoalNameRequest
		err := decodeBody(w, r, &request)
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Invalid request body", "error", err.Error())
			writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("goalID", goalID))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"goalID": goalID})

		goal, err := editGoalName(ctx, goalID, request.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeSuccessResponse(ctx, w, goal)
	}

	return middleware(handler)
}

type revalidateRequest struct {
	Key    string `json:"key"`
	Prefix string `json:"prefix"`
}

type revalidateResponse struct {
	Notified int `json:"notified"`
}

func MakeRevalidateHandler(
	revalidate app.Revalidate,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("revalidate", writeLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request revalidateRequest
		err := decodeBody(w, r, &request)
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Invalid request body", "error", err.Error())
			writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("key", request.Key),
			slog.String("prefix", request.Prefix),
		)

		notified, err := revalidate(ctx, request.Key, request.Prefix)
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeSuccessResponse(ctx, w, revalidateResponse{Notified: notified})
	}

	return middleware(handler)
}

func MakeLogoutHandler(
	logout app.Logout,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("logout", writeLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logout(ctx)
		writeSuccessResponse(ctx, w, struct{}{})
	}

	return middleware(handler)
}

type invalidateRequest struct {
	Key string `json:"key"`
}

func MakeInvalidateHandler(
	invalidate app.Invalidate,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("invalidate", writeLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request invalidateRequest
		err := decodeBody(w, r, &request)
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Invalid request body", "error", err.Error())
			writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("key", request.Key))

		err = invalidate(ctx, request.Key)
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeSuccessResponse(ctx, w, struct{}{})
	}

	return middleware(handler)
}
