package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/adapters/operatelyapi"
	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/revalidate"
)

// CLI fetches a single page through the same loaders the service uses.
type CLI struct {
	Page     string        `arg:"" enum:"goal,project,space,company,work-map" help:"Page to fetch (goal, project, space, company, work-map)."`
	ID       string        `arg:"" optional:"" help:"Goal, project, space or person id. Not used for the company page."`
	APIURL   string        `name:"api-url" env:"OPERATELY_API_URL" help:"Operately API url. Fixture data is served when empty."`
	APIToken string        `name:"api-token" env:"OPERATELY_API_TOKEN" help:"Operately API token."`
	Fixtures string        `type:"existingfile" help:"YAML fixture file served instead of the built-in fixtures when no API url is set."`
	Refresh  bool          `help:"Bypass the cache on the first fetch."`
	Twice    bool          `help:"Fetch the page a second time, which is served from the cache."`
	Timeout  time.Duration `help:"Timeout for each fetch." default:"10s"`
}

type fetchResult struct {
	Key     string `json:"key"`
	Version uint64 `json:"version"`
	Page    any    `json:"page"`
}

type pageFetcher func(ctx context.Context, forceRefresh bool) (fetchResult, error)

func fetcherFor[T any](loader *cache.Loader[T], key string, get func(ctx context.Context, forceRefresh bool) (T, error)) pageFetcher {
	return func(ctx context.Context, forceRefresh bool) (fetchResult, error) {
		page, err := get(ctx, forceRefresh)
		if err != nil {
			return fetchResult{}, err
		}
		entry, _ := loader.Get(key)
		return fetchResult{Key: key, Version: entry.Version, Page: page}, nil
	}
}

func (c *CLI) newFetcher(api operatelyapi.API) (pageFetcher, error) {
	if c.Page != "company" && c.ID == "" {
		return nil, fmt.Errorf("%w: the %s page needs an id", domain.ErrInvalidInput, c.Page)
	}

	subscriptions := app.NewSubscriptions(revalidate.NewBus())

	switch c.Page {
	case "goal":
		loader := cache.NewLoader("goalPage", cache.NewBasicStore[domain.GoalPage]())
		get := app.BuildGetGoalPageWithCache(loader, subscriptions, api)
		return fetcherFor(loader, app.GoalPageKey(c.ID), func(ctx context.Context, forceRefresh bool) (domain.GoalPage, error) {
			return get(ctx, c.ID, forceRefresh)
		}), nil
	case "project":
		loader := cache.NewLoader("projectPage", cache.NewBasicStore[domain.ProjectPage]())
		get := app.BuildGetProjectPageWithCache(loader, subscriptions, api)
		return fetcherFor(loader, app.ProjectPageKey(c.ID), func(ctx context.Context, forceRefresh bool) (domain.ProjectPage, error) {
			return get(ctx, c.ID, forceRefresh)
		}), nil
	case "space":
		loader := cache.NewLoader("spacePage", cache.NewBasicStore[domain.SpacePage]())
		get := app.BuildGetSpacePageWithCache(loader, subscriptions, api)
		return fetcherFor(loader, app.SpacePageKey(c.ID), func(ctx context.Context, forceRefresh bool) (domain.SpacePage, error) {
			return get(ctx, c.ID, forceRefresh)
		}), nil
	case "company":
		loader := cache.NewLoader("companyPage", cache.NewBasicStore[domain.CompanyPage]())
		get := app.BuildGetCompanyPageWithCache(loader, subscriptions, api)
		return fetcherFor(loader, app.CompanyPageKey(), get), nil
	case "work-map":
		loader := cache.NewLoader("workMap", cache.NewBasicStore[domain.WorkMap]())
		get := app.BuildGetWorkMapWithCache(loader, subscriptions, api)
		return fetcherFor(loader, app.WorkMapKey(c.ID), func(ctx context.Context, forceRefresh bool) (domain.WorkMap, error) {
			return get(ctx, c.ID, forceRefresh)
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown page %s", domain.ErrInvalidInput, c.Page)
	}
}

func (c *CLI) newAPI(ctx context.Context) (operatelyapi.API, error) {
	if c.APIURL == "" {
		if c.Fixtures != "" {
			return operatelyapi.NewFixtureAPIFromFile(c.Fixtures)
		}
		return operatelyapi.NewFixtureAPI(), nil
	}
	httpClient := operatelyapi.NewHTTPClient(ctx, c.APIToken, c.Timeout)
	return operatelyapi.NewOperatelyAPI(httpClient, c.APIURL)
}

func (c *CLI) run(ctx context.Context, api operatelyapi.API, stdout io.Writer, pretty bool) error {
	fetch, err := c.newFetcher(api)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(stdout)
	if pretty {
		encoder.SetIndent("", "  ")
	}

	runs := 1
	if c.Twice {
		runs = 2
	}
	for i := range runs {
		fetchCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		result, err := fetch(fetchCtx, c.Refresh && i == 0)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to fetch %s page: %w", c.Page, err)
		}

		err = encoder.Encode(result)
		if err != nil {
			return fmt.Errorf("failed to write page: %w", err)
		}
	}
	return nil
}

func (c *CLI) Run() error {
	logger := logging.NewRootLogger(os.Stderr, "fetch-page")
	ctx := logging.AddToContext(context.Background(), logger)

	api, err := c.newAPI(ctx)
	if err != nil {
		return err
	}
	pretty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return c.run(ctx, api, os.Stdout, pretty)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fetch-page"),
		kong.Description("Fetch Operately page data through the page data cache."),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
