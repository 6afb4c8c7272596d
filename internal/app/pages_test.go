package app_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/adapters/operatelyapi"
	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/revalidate"
	"github.com/stretchr/testify/require"
)

type countingAPI struct {
	operatelyapi.API

	goalPageCalls    atomic.Int32
	projectPageCalls atomic.Int32
	spacePageCalls   atomic.Int32
	companyPageCalls atomic.Int32
	personCalls      atomic.Int32
}

func newCountingAPI() *countingAPI {
	return &countingAPI{API: operatelyapi.NewFixtureAPI()}
}

func (c *countingAPI) GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error) {
	c.goalPageCalls.Add(1)
	return c.API.GetGoalPage(ctx, goalID)
}

func (c *countingAPI) GetProjectPage(ctx context.Context, projectID string) (domain.ProjectPage, error) {
	c.projectPageCalls.Add(1)
	return c.API.GetProjectPage(ctx, projectID)
}

func (c *countingAPI) GetSpacePage(ctx context.Context, spaceID string) (domain.SpacePage, error) {
	c.spacePageCalls.Add(1)
	return c.API.GetSpacePage(ctx, spaceID)
}

func (c *countingAPI) GetCompanyPage(ctx context.Context) (domain.CompanyPage, error) {
	c.companyPageCalls.Add(1)
	return c.API.GetCompanyPage(ctx)
}

func (c *countingAPI) GetPerson(ctx context.Context, personID string) (domain.Person, error) {
	c.personCalls.Add(1)
	return c.API.GetPerson(ctx, personID)
}

type testApp struct {
	api           *countingAPI
	bus           *revalidate.Bus
	subscriptions *app.Subscriptions

	goalPages    *cache.Loader[domain.GoalPage]
	projectPages *cache.Loader[domain.ProjectPage]
	spacePages   *cache.Loader[domain.SpacePage]
	companyPages *cache.Loader[domain.CompanyPage]
	workMaps     *cache.Loader[domain.WorkMap]

	getGoalPage    app.GetGoalPage
	getProjectPage app.GetProjectPage
	getSpacePage   app.GetSpacePage
	getCompanyPage app.GetCompanyPage
	getWorkMap     app.GetWorkMap
	editGoalName   app.EditGoalName
	revalidate     app.Revalidate
	logout         app.Logout
	invalidate     app.Invalidate
}

func newTestApp() *testApp {
	a := &testApp{
		api: newCountingAPI(),
		bus: revalidate.NewBus(),

		goalPages:    cache.NewLoader("goalPage", cache.NewBasicStore[domain.GoalPage]()),
		projectPages: cache.NewLoader("projectPage", cache.NewBasicStore[domain.ProjectPage]()),
		spacePages:   cache.NewLoader("spacePage", cache.NewBasicStore[domain.SpacePage]()),
		companyPages: cache.NewLoader("companyPage", cache.NewBasicStore[domain.CompanyPage]()),
		workMaps:     cache.NewLoader("workMap", cache.NewBasicStore[domain.WorkMap]()),
	}
	a.subscriptions = app.NewSubscriptions(a.bus)

	a.getGoalPage = app.BuildGetGoalPageWithCache(a.goalPages, a.subscriptions, a.api)
	a.getProjectPage = app.BuildGetProjectPageWithCache(a.projectPages, a.subscriptions, a.api)
	a.getSpacePage = app.BuildGetSpacePageWithCache(a.spacePages, a.subscriptions, a.api)
	a.getCompanyPage = app.BuildGetCompanyPageWithCache(a.companyPages, a.subscriptions, a.api)
	a.getWorkMap = app.BuildGetWorkMapWithCache(a.workMaps, a.subscriptions, a.api)
	a.editGoalName = app.BuildEditGoalName(a.api, a.bus)
	a.revalidate = app.BuildRevalidate(a.bus)
	a.logout = app.BuildLogout(a.subscriptions, a.goalPages, a.projectPages, a.spacePages, a.companyPages, a.workMaps)
	a.invalidate = app.BuildInvalidate(a.goalPages, a.projectPages, a.spacePages, a.companyPages, a.workMaps)
	return a
}

func TestGoalPageScenario(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	a := newTestApp()
	key := app.GoalPageKey("goal-1")

	page, err := a.getGoalPage(ctx, "goal-1", false)
	require.NoError(t, err)
	require.Equal(t, "Launch", page.Goal.Name)

	entry, ok := a.goalPages.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(1), entry.Version)
	require.Equal(t, 1, a.bus.Subscribers(key))

	goal, err := a.editGoalName(ctx, "goal-1", "Launch v2")
	require.NoError(t, err)
	require.Equal(t, "Launch v2", goal.Name)

	// The subscription refetched the page before the mutation returned
	entry, ok = a.goalPages.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(2), entry.Version)
	require.Equal(t, "Launch v2", entry.Value.Goal.Name)
	require.Equal(t, int32(2), a.api.goalPageCalls.Load())
	require.Equal(t, 1, a.bus.Subscribers(key))

	page, err = a.getGoalPage(ctx, "goal-1", false)
	require.NoError(t, err)
	require.Equal(t, "Launch v2", page.Goal.Name)
	require.Equal(t, int32(2), a.api.goalPageCalls.Load())
}

func TestGetPages(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	t.Run("cached page is reused", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		first, err := a.getProjectPage(ctx, "project-1", false)
		require.NoError(t, err)
		second, err := a.getProjectPage(ctx, "project-1", false)
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, int32(1), a.api.projectPageCalls.Load())
	})

	t.Run("force refresh fetches again", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getSpacePage(ctx, "space-1", false)
		require.NoError(t, err)
		_, err = a.getSpacePage(ctx, "space-1", true)
		require.NoError(t, err)

		require.Equal(t, int32(2), a.api.spacePageCalls.Load())
		entry, ok := a.spacePages.Get(app.SpacePageKey("space-1"))
		require.True(t, ok)
		require.Equal(t, uint64(2), entry.Version)
	})

	t.Run("company page", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		page, err := a.getCompanyPage(ctx, false)
		require.NoError(t, err)
		require.Equal(t, "Acme", page.Company.Name)

		_, err = a.getCompanyPage(ctx, false)
		require.NoError(t, err)
		require.Equal(t, int32(1), a.api.companyPageCalls.Load())
		require.Equal(t, 1, a.bus.Subscribers(app.CompanyPageKey()))
	})

	t.Run("not found is not cached or watched", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getGoalPage(ctx, "goal-404", false)
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, ok := a.goalPages.Get(app.GoalPageKey("goal-404"))
		require.False(t, ok)
		require.Equal(t, 0, a.subscriptions.Len())

		_, err = a.getGoalPage(ctx, "goal-404", false)
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.Equal(t, int32(2), a.api.goalPageCalls.Load())
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getGoalPage(ctx, "", false)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = a.getProjectPage(ctx, "", false)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = a.getSpacePage(ctx, "", false)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = a.getWorkMap(ctx, "", false)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		require.Equal(t, int32(0), a.api.goalPageCalls.Load())
		require.Equal(t, 0, a.subscriptions.Len())
	})

	t.Run("stale page survives failed refresh", func(t *testing.T) {
		t.Parallel()

		calls := 0
		provider := goalPageFunc(func(ctx context.Context, goalID string) (domain.GoalPage, error) {
			calls++
			if calls > 1 {
				return domain.GoalPage{}, domain.ErrTemporarilyUnavailable
			}
			return domain.GoalPage{Goal: domain.Goal{ID: goalID, Name: "Launch"}}, nil
		})
		loader := cache.NewLoader("goalPage", cache.NewBasicStore[domain.GoalPage]())
		getGoalPage := app.BuildGetGoalPageWithCache(loader, app.NewSubscriptions(revalidate.NewBus()), provider)

		_, err := getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)

		_, err = getGoalPage(ctx, "goal-1", true)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)

		entry, ok := loader.Get(app.GoalPageKey("goal-1"))
		require.True(t, ok)
		require.Equal(t, uint64(1), entry.Version)
		require.Equal(t, "Launch", entry.Value.Goal.Name)

		page, err := getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)
		require.Equal(t, "Launch", page.Goal.Name)
		require.Equal(t, 2, calls)
	})
}

type goalPageFunc func(ctx context.Context, goalID string) (domain.GoalPage, error)

func (f goalPageFunc) GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error) {
	return f(ctx, goalID)
}
