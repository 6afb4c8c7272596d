package app

import (
	"context"
	"fmt"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/domain"
	"golang.org/x/sync/errgroup"
)

type GetWorkMap func(ctx context.Context, personID string, forceRefresh bool) (domain.WorkMap, error)

type workMapProvider interface {
	GetPerson(ctx context.Context, personID string) (domain.Person, error)
	ListGoalsForPerson(ctx context.Context, personID string) ([]domain.Goal, error)
	ListProjectsForPerson(ctx context.Context, personID string) ([]domain.Project, error)
}

func buildGetWorkMapWithoutCache(provider workMapProvider) func(ctx context.Context, personID string) (domain.WorkMap, error) {
	return func(ctx context.Context, personID string) (domain.WorkMap, error) {
		var person domain.Person
		var goals []domain.Goal
		var projects []domain.Project

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			person, err = provider.GetPerson(gctx, personID)
			return err
		})
		g.Go(func() error {
			var err error
			goals, err = provider.ListGoalsForPerson(gctx, personID)
			return err
		})
		g.Go(func() error {
			var err error
			projects, err = provider.ListProjectsForPerson(gctx, personID)
			return err
		})
		err := g.Wait()
		if err != nil {
			// NOTE: The provider handles its own error reporting
			return domain.WorkMap{}, fmt.Errorf("could not get work map for person: %w", err)
		}

		return domain.WorkMap{
			Person: person,
			Items:  domain.BuildGoalTree(goals, projects),
		}, nil
	}
}

func BuildGetWorkMapWithCache(
	loader *cache.Loader[domain.WorkMap],
	subscriptions *Subscriptions,
	provider workMapProvider,
) GetWorkMap {
	getWorkMapWithoutCache := buildGetWorkMapWithoutCache(provider)
	unwatchOnEvict(loader, subscriptions)

	return func(ctx context.Context, personID string, forceRefresh bool) (domain.WorkMap, error) {
		if personID == "" {
			return domain.WorkMap{}, missingID("person")
		}
		return buildGetPageWithCache(loader, subscriptions, WorkMapKey(personID), func(ctx context.Context) (domain.WorkMap, error) {
			return getWorkMapWithoutCache(ctx, personID)
		})(ctx, forceRefresh)
	}
}
