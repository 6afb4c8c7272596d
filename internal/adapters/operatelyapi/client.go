package operatelyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/operately/pagedata/internal/config"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const userAgent = "pagedata/0.1.0 (+https://github.com/operately/pagedata)"

// Page responses are well below this; anything larger is not buffered.
const maxResponseBytes = 4 << 20

var ErrResponseTooLarge = errors.New("operately api response too large")

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API is the part of the Operately API the page loaders read from and the mutations write to
type API interface {
	GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error)
	GetProjectPage(ctx context.Context, projectID string) (domain.ProjectPage, error)
	GetSpacePage(ctx context.Context, spaceID string) (domain.SpacePage, error)
	GetCompanyPage(ctx context.Context) (domain.CompanyPage, error)
	GetPerson(ctx context.Context, personID string) (domain.Person, error)
	ListGoalsForPerson(ctx context.Context, personID string) ([]domain.Goal, error)
	ListProjectsForPerson(ctx context.Context, personID string) ([]domain.Project, error)
	EditGoalName(ctx context.Context, goalID string, name string) (domain.Goal, error)
}

type operatelyAPIMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

func setupOperatelyAPIMetrics(meter metric.Meter) (operatelyAPIMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("operatelyapi/request_count")
	if err != nil {
		return operatelyAPIMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"operatelyapi/request_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return operatelyAPIMetricsCollection{}, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	return operatelyAPIMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}, nil
}

type operatelyAPI struct {
	httpClient HttpClient
	baseURL    string
	limiter    *rate.Limiter

	metrics operatelyAPIMetricsCollection
	tracer  trace.Tracer
}

func NewOperatelyAPI(httpClient HttpClient, baseURL string) (*operatelyAPI, error) {
	const name = "pagedata/operatelyapi"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupOperatelyAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid operately api url: %q", baseURL)
	}

	return &operatelyAPI{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		// Stay well below the API's own limits, a page load fans out into a few requests
		limiter: rate.NewLimiter(rate.Limit(20), 40),

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// NewAPIOrMock talks to the configured API, or serves fixtures in development when none is set
func NewAPIOrMock(config config.Config, httpClient HttpClient) (API, error) {
	if config.APIURL() != "" {
		api, err := NewOperatelyAPI(httpClient, config.APIURL())
		if err != nil {
			return nil, err
		}
		return api, nil
	}
	if config.IsDevelopment() {
		return NewFixtureAPI(), nil
	}
	return nil, fmt.Errorf("missing Operately API url in non-development environment")
}

func (o *operatelyAPI) GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error) {
	return request[domain.GoalPage](ctx, o, "GetGoalPage", http.MethodGet, "/api/v2/goals/"+url.PathEscape(goalID), nil)
}

func (o *operatelyAPI) GetProjectPage(ctx context.Context, projectID string) (domain.ProjectPage, error) {
	return request[domain.ProjectPage](ctx, o, "GetProjectPage", http.MethodGet, "/api/v2/projects/"+url.PathEscape(projectID), nil)
}

func (o *operatelyAPI) GetSpacePage(ctx context.Context, spaceID string) (domain.SpacePage, error) {
	return request[domain.SpacePage](ctx, o, "GetSpacePage", http.MethodGet, "/api/v2/spaces/"+url.PathEscape(spaceID), nil)
}

func (o *operatelyAPI) GetCompanyPage(ctx context.Context) (domain.CompanyPage, error) {
	return request[domain.CompanyPage](ctx, o, "GetCompanyPage", http.MethodGet, "/api/v2/company", nil)
}

func (o *operatelyAPI) GetPerson(ctx context.Context, personID string) (domain.Person, error) {
	return request[domain.Person](ctx, o, "GetPerson", http.MethodGet, "/api/v2/people/"+url.PathEscape(personID), nil)
}

func (o *operatelyAPI) ListGoalsForPerson(ctx context.Context, personID string) ([]domain.Goal, error) {
	return request[[]domain.Goal](ctx, o, "ListGoalsForPerson", http.MethodGet, "/api/v2/people/"+url.PathEscape(personID)+"/goals", nil)
}

func (o *operatelyAPI) ListProjectsForPerson(ctx context.Context, personID string) ([]domain.Project, error) {
	return request[[]domain.Project](ctx, o, "ListProjectsForPerson", http.MethodGet, "/api/v2/people/"+url.PathEscape(personID)+"/projects", nil)
}

type editGoalNameRequest struct {
	Name string `json:"name"`
}

func (o *operatelyAPI) EditGoalName(ctx context.Context, goalID string, name string) (domain.Goal, error) {
	return request[domain.Goal](
		ctx,
		o,
		"EditGoalName",
		http.MethodPost,
		"/api/v2/goals/"+url.PathEscape(goalID)+"/edit_name",
		editGoalNameRequest{Name: name},
	)
}

func request[T any](ctx context.Context, o *operatelyAPI, operation string, method string, path string, body any) (T, error) {
	var result T

	ctx, span := o.tracer.Start(ctx, "OperatelyAPI."+operation)
	defer span.End()

	logger := logging.FromContext(ctx).With("operation", operation, "path", path)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			err := fmt.Errorf("failed to marshal request body: %w", err)
			reporting.Report(ctx, err)
			return result, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reqBody)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return result, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	err = o.limiter.Wait(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Did not send Operately API request due to rate limiting", "error", err.Error())
		return result, fmt.Errorf("%w: too many requests to operately api: %w", domain.ErrTemporarilyUnavailable, err)
	}

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		if !errors.Is(err, context.Canceled) {
			reporting.Report(ctx, err)
		}
		return result, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return result, err
	}
	if len(data) > maxResponseBytes {
		err := fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, maxResponseBytes)
		reporting.Report(ctx, err, map[string]string{
			"status": strconv.Itoa(resp.StatusCode),
		})
		return result, err
	}

	duration := time.Since(start)
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
	)
	o.metrics.requestCount.Add(ctx, 1, attrs)
	o.metrics.requestDuration.Record(ctx, duration.Seconds(), attrs)
	logger.InfoContext(ctx, "Operately API request completed", "status", resp.StatusCode, "duration", duration.String())

	err = errorFromStatus(resp.StatusCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidInput) {
			// Client errors, nothing to fix on our side
			return result, err
		}
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
		})
		return result, err
	}

	err = json.Unmarshal(data, &result)
	if err != nil {
		err := fmt.Errorf("failed to parse operately api response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data": string(data),
		})
		return result, err
	}

	return result, nil
}

func errorFromStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: operately api returned %d", domain.ErrNotFound, statusCode)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: operately api returned %d", domain.ErrUnauthorized, statusCode)
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: operately api returned %d", domain.ErrInvalidInput, statusCode)
	case statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: operately api returned %d", domain.ErrTemporarilyUnavailable, statusCode)
	default:
		return fmt.Errorf("operately api returned unexpected status %d", statusCode)
	}
}
