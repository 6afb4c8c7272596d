package ports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/reporting"
)

// parseRefresh reads the optional ?refresh=<bool> query parameter
func parseRefresh(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("refresh")
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func makePageHandler[T any](
	portName string,
	idParam string,
	getPage func(ctx context.Context, id string, forceRefresh bool) (T, error),
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware(portName, readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := ""
		if idParam != "" {
			id = r.PathValue(idParam)
			if id == "" {
				writeErrorResponse(w, http.StatusBadRequest, "missing id")
				return
			}
		}

		forceRefresh, err := parseRefresh(r)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid refresh parameter")
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("pageID", id),
			slog.Bool("forceRefresh", forceRefresh),
		)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"pageID":       id,
				"forceRefresh": strconv.FormatBool(forceRefresh),
			},
		)

		page, err := getPage(ctx, id, forceRefresh)
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeSuccessResponse(ctx, w, page)
	}

	return middleware(handler)
}

func MakeGetGoalPageHandler(
	getGoalPage app.GetGoalPage,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makePageHandler[domain.GoalPage]("goal_page", "id", getGoalPage, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeGetProjectPageHandler(
	getProjectPage app.GetProjectPage,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makePageHandler[domain.ProjectPage]("project_page", "id", getProjectPage, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeGetSpacePageHandler(
	getSpacePage app.GetSpacePage,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makePageHandler[domain.SpacePage]("space_page", "id", getSpacePage, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeGetWorkMapHandler(
	getWorkMap app.GetWorkMap,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makePageHandler[domain.WorkMap]("work_map", "personID", getWorkMap, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeGetCompanyPageHandler(
	getCompanyPage app.GetCompanyPage,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	getPage := func(ctx context.Context, _ string, forceRefresh bool) (domain.CompanyPage, error) {
		return getCompanyPage(ctx, forceRefresh)
	}
	return makePageHandler("company_page", "", getPage, allowedOrigins, rootLogger, sentryMiddleware)
}
