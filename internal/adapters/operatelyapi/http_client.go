package operatelyapi

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// NewHTTPClient returns a traced client that authenticates with token as a bearer token.
// An empty token gives an unauthenticated client.
func NewHTTPClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	base := &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&userAgentRoundTripper{
			wrapped:   http.DefaultTransport,
			userAgent: userAgent,
		}),
	}
	if token == "" {
		return base
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}
