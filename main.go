package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/adapters/operatelyapi"
	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/config"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/ports"
	"github.com/operately/pagedata/internal/reporting"
	"github.com/operately/pagedata/internal/revalidate"
	"github.com/operately/pagedata/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "pagedata"

func newLoader[T any](name string, settings cache.StoreSettings) (*cache.Loader[T], func(), error) {
	store, stop, err := cache.NewStore[T](settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s store: %w", name, err)
	}
	return cache.NewLoader(name, store), stop, nil
}

func main() {
	instanceID := uuid.New().String()
	logger := logging.NewRootLogger(os.Stdout, instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			err := shutdownOTel(context.Background())
			if err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	storeSettings := config.CacheStoreSettings()

	goalPages, stopGoalPages, err := newLoader[domain.GoalPage]("goalPage", storeSettings)
	if err != nil {
		fail("Failed to initialize cache", "error", err.Error())
	}
	defer stopGoalPages()
	projectPages, stopProjectPages, err := newLoader[domain.ProjectPage]("projectPage", storeSettings)
	if err != nil {
		fail("Failed to initialize cache", "error", err.Error())
	}
	defer stopProjectPages()
	spacePages, stopSpacePages, err := newLoader[domain.SpacePage]("spacePage", storeSettings)
	if err != nil {
		fail("Failed to initialize cache", "error", err.Error())
	}
	defer stopSpacePages()
	companyPages, stopCompanyPages, err := newLoader[domain.CompanyPage]("companyPage", storeSettings)
	if err != nil {
		fail("Failed to initialize cache", "error", err.Error())
	}
	defer stopCompanyPages()
	workMaps, stopWorkMaps, err := newLoader[domain.WorkMap]("workMap", storeSettings)
	if err != nil {
		fail("Failed to initialize cache", "error", err.Error())
	}
	defer stopWorkMaps()
	logger.Info("Initialized caches", "policy", string(storeSettings.Policy))

	bus := revalidate.NewBus()
	subscriptions := app.NewSubscriptions(bus)

	httpClient := operatelyapi.NewHTTPClient(ctx, config.APIToken(), 10*time.Second)
	operatelyAPI, err := operatelyapi.NewAPIOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize Operately API", "error", err.Error())
	}
	logger.Info("Initialized Operately API")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	allowedOrigins, err := ports.NewAllowedOrigins(config.IsDevelopment(), config.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	getGoalPageWithCache := app.BuildGetGoalPageWithCache(goalPages, subscriptions, operatelyAPI)
	getProjectPageWithCache := app.BuildGetProjectPageWithCache(projectPages, subscriptions, operatelyAPI)
	getSpacePageWithCache := app.BuildGetSpacePageWithCache(spacePages, subscriptions, operatelyAPI)
	getCompanyPageWithCache := app.BuildGetCompanyPageWithCache(companyPages, subscriptions, operatelyAPI)
	getWorkMapWithCache := app.BuildGetWorkMapWithCache(workMaps, subscriptions, operatelyAPI)

	editGoalName := app.BuildEditGoalName(operatelyAPI, bus)
	revalidatePages := app.BuildRevalidate(bus)
	logout := app.BuildLogout(subscriptions, goalPages, projectPages, spacePages, companyPages, workMaps)
	invalidate := app.BuildInvalidate(goalPages, projectPages, spacePages, companyPages, workMaps)

	mux := http.NewServeMux()
	handle := func(method string, pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(fmt.Sprintf("OPTIONS %s", pattern), ports.BuildCORSHandler(allowedOrigins))
		mux.HandleFunc(fmt.Sprintf("%s %s", method, pattern), handler)
	}

	handle("GET", "/v1/pages/goals/{id}", ports.MakeGetGoalPageHandler(
		getGoalPageWithCache,
		allowedOrigins,
		logger.With("port", "goalpage"),
		sentryMiddleware,
	))
	handle("GET", "/v1/pages/projects/{id}", ports.MakeGetProjectPageHandler(
		getProjectPageWithCache,
		allowedOrigins,
		logger.With("port", "projectpage"),
		sentryMiddleware,
	))
	handle("GET", "/v1/pages/spaces/{id}", ports.MakeGetSpacePageHandler(
		getSpacePageWithCache,
		allowedOrigins,
		logger.With("port", "spacepage"),
		sentryMiddleware,
	))
	handle("GET", "/v1/pages/company", ports.MakeGetCompanyPageHandler(
		getCompanyPageWithCache,
		allowedOrigins,
		logger.With("port", "companypage"),
		sentryMiddleware,
	))
	handle("GET", "/v1/pages/work-map/{personID}", ports.MakeGetWorkMapHandler(
		getWorkMapWithCache,
		allowedOrigins,
		logger.With("port", "workmap"),
		sentryMiddleware,
	))
	handle("POST", "/v1/goals/{id}/name", ports.MakeEditGoalNameHandler(
		editGoalName,
		allowedOrigins,
		logger.With("port", "editgoalname"),
		sentryMiddleware,
	))
	handle("POST", "/v1/revalidate", ports.MakeRevalidateHandler(
		revalidatePages,
		allowedOrigins,
		logger.With("port", "revalidate"),
		sentryMiddleware,
	))
	handle("POST", "/v1/invalidate", ports.MakeInvalidateHandler(
		invalidate,
		allowedOrigins,
		logger.With("port", "invalidate"),
		sentryMiddleware,
	))
	handle("POST", "/v1/logout", ports.MakeLogoutHandler(
		logout,
		allowedOrigins,
		logger.With("port", "logout"),
		sentryMiddleware,
	))
	handle("GET", "/v1/events", ports.MakeEventsHandler(
		bus.Observe,
		allowedOrigins,
		logger.With("port", "events"),
		sentryMiddleware,
	))

	// No WriteTimeout, event streams stay open
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logging.AddToContext(ctx, logger)
		},
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete", slog.String("addr", server.Addr))
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
