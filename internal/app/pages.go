package app

import (
	"context"
	"fmt"
	"time"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/domain"
)

const fetchTimeout = 10 * time.Second

type GetGoalPage func(ctx context.Context, goalID string, forceRefresh bool) (domain.GoalPage, error)
type GetProjectPage func(ctx context.Context, projectID string, forceRefresh bool) (domain.ProjectPage, error)
type GetSpacePage func(ctx context.Context, spaceID string, forceRefresh bool) (domain.SpacePage, error)
type GetCompanyPage func(ctx context.Context, forceRefresh bool) (domain.CompanyPage, error)

type goalPageProvider interface {
	GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error)
}

type projectPageProvider interface {
	GetProjectPage(ctx context.Context, projectID string) (domain.ProjectPage, error)
}

type spacePageProvider interface {
	GetSpacePage(ctx context.Context, spaceID string) (domain.SpacePage, error)
}

type companyPageProvider interface {
	GetCompanyPage(ctx context.Context) (domain.CompanyPage, error)
}

// buildGetPageWithCache loads the page stored under key through loader.
// After the first successful load the key is watched, and a stale notification refetches it.
func buildGetPageWithCache[T any](
	loader *cache.Loader[T],
	subscriptions *Subscriptions,
	key string,
	fetch func(ctx context.Context) (T, error),
) func(ctx context.Context, forceRefresh bool) (T, error) {
	var getPage func(ctx context.Context, forceRefresh bool) (T, error)
	getPage = func(ctx context.Context, forceRefresh bool) (T, error) {
		page, err := loader.FetchOrUse(ctx, key, func(ctx context.Context) (T, error) {
			fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()
			return fetch(fetchCtx)
		}, cache.WithForceRefresh(forceRefresh))
		if err != nil {
			var empty T
			return empty, fmt.Errorf("failed to load %s: %w", key, err)
		}

		isCached := func() bool {
			_, ok := loader.Get(key)
			return ok
		}
		subscriptions.Watch(key, refetchOnStale(key, isCached, getPage))

		return page, nil
	}
	return getPage
}

func missingID(kind string) error {
	return fmt.Errorf("%w: missing %s id", domain.ErrInvalidInput, kind)
}

func BuildGetGoalPageWithCache(
	loader *cache.Loader[domain.GoalPage],
	subscriptions *Subscriptions,
	provider goalPageProvider,
) GetGoalPage {
	unwatchOnEvict(loader, subscriptions)

	return func(ctx context.Context, goalID string, forceRefresh bool) (domain.GoalPage, error) {
		if goalID == "" {
			return domain.GoalPage{}, missingID("goal")
		}
		return buildGetPageWithCache(loader, subscriptions, GoalPageKey(goalID), func(ctx context.Context) (domain.GoalPage, error) {
			return provider.GetGoalPage(ctx, goalID)
		})(ctx, forceRefresh)
	}
}

func BuildGetProjectPageWithCache(
	loader *cache.Loader[domain.ProjectPage],
	subscriptions *Subscriptions,
	provider projectPageProvider,
) GetProjectPage {
	unwatchOnEvict(loader, subscriptions)

	return func(ctx context.Context, projectID string, forceRefresh bool) (domain.ProjectPage, error) {
		if projectID == "" {
			return domain.ProjectPage{}, missingID("project")
		}
		return buildGetPageWithCache(loader, subscriptions, ProjectPageKey(projectID), func(ctx context.Context) (domain.ProjectPage, error) {
			return provider.GetProjectPage(ctx, projectID)
		})(ctx, forceRefresh)
	}
}

func BuildGetSpacePageWithCache(
	loader *cache.Loader[domain.SpacePage],
	subscriptions *Subscriptions,
	provider spacePageProvider,
) GetSpacePage {
	unwatchOnEvict(loader, subscriptions)

	return func(ctx context.Context, spaceID string, forceRefresh bool) (domain.SpacePage, error) {
		if spaceID == "" {
			return domain.SpacePage{}, missingID("space")
		}
		return buildGetPageWithCache(loader, subscriptions, SpacePageKey(spaceID), func(ctx context.Context) (domain.SpacePage, error) {
			return provider.GetSpacePage(ctx, spaceID)
		})(ctx, forceRefresh)
	}
}

func BuildGetCompanyPageWithCache(
	loader *cache.Loader[domain.CompanyPage],
	subscriptions *Subscriptions,
	provider companyPageProvider,
) GetCompanyPage {
	unwatchOnEvict(loader, subscriptions)

	return buildGetPageWithCache(loader, subscriptions, CompanyPageKey(), provider.GetCompanyPage)
}
