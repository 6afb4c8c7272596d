package app_test

import (
	"context"
	"strings"
	"testing"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/app"
	"github.com/operately/pagedata/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestEditGoalName(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	t.Run("refreshes every watched page showing the goal", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getGoalPage(ctx, "goal-2", false)
		require.NoError(t, err)
		_, err = a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)
		_, err = a.getSpacePage(ctx, "space-2", false)
		require.NoError(t, err)
		_, err = a.getWorkMap(ctx, "person-1", false)
		require.NoError(t, err)
		_, err = a.getWorkMap(ctx, "person-2", false)
		require.NoError(t, err)
		_, err = a.getCompanyPage(ctx, false)
		require.NoError(t, err)

		_, err = a.editGoalName(ctx, "goal-2", "Public beta")
		require.NoError(t, err)

		for _, key := range []string{app.GoalPageKey("goal-2"), app.GoalPageKey("goal-1")} {
			entry, ok := a.goalPages.Get(key)
			require.True(t, ok)
			require.Equal(t, uint64(2), entry.Version, key)
		}

		goalPage, _ := a.goalPages.Get(app.GoalPageKey("goal-1"))
		require.Equal(t, "Public beta", goalPage.Value.Subgoals[0].Name)

		spacePage, _ := a.spacePages.Get(app.SpacePageKey("space-2"))
		require.Equal(t, uint64(2), spacePage.Version)

		for _, personID := range []string{"person-1", "person-2"} {
			workMap, ok := a.workMaps.Get(app.WorkMapKey(personID))
			require.True(t, ok)
			require.Equal(t, uint64(2), workMap.Version, personID)
		}

		companyPage, _ := a.companyPages.Get(app.CompanyPageKey())
		require.Equal(t, uint64(1), companyPage.Version)
	})

	t.Run("observers see the refreshed page", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()
		key := app.GoalPageKey("goal-1")

		// An event stream opened before the page was first loaded
		seen := []string{}
		a.bus.Observe(key, func(ctx context.Context) {
			entry, ok := a.goalPages.Get(key)
			require.True(t, ok)
			seen = append(seen, entry.Value.Goal.Name)
		})

		_, err := a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)

		_, err = a.editGoalName(ctx, "goal-1", "Renamed")
		require.NoError(t, err)
		require.Equal(t, []string{"Renamed"}, seen)

		// Still ordered after the watch is dropped and made again
		a.logout(ctx)
		_, err = a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)

		_, err = a.editGoalName(ctx, "goal-1", "Renamed again")
		require.NoError(t, err)
		require.Equal(t, []string{"Renamed", "Renamed again"}, seen)
	})

	t.Run("evicted pages are not refetched", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()
		store, err := cache.NewLRUStore[domain.WorkMap](1)
		require.NoError(t, err)
		a.workMaps = cache.NewLoader("workMap", store)
		a.getWorkMap = app.BuildGetWorkMapWithCache(a.workMaps, a.subscriptions, a.api)

		_, err = a.getWorkMap(ctx, "person-1", false)
		require.NoError(t, err)
		_, err = a.getWorkMap(ctx, "person-2", false)
		require.NoError(t, err)

		require.Equal(t, 1, a.workMaps.Len())
		require.Equal(t, 1, a.subscriptions.Len())
		require.Equal(t, []string{app.WorkMapKey("person-2")}, a.bus.Keys())
		require.Equal(t, int32(2), a.api.personCalls.Load())

		_, err = a.editGoalName(ctx, "goal-2", "Public beta")
		require.NoError(t, err)

		require.Equal(t, int32(3), a.api.personCalls.Load())
		require.Equal(t, 1, a.workMaps.Len())
		_, ok := a.workMaps.Get(app.WorkMapKey("person-1"))
		require.False(t, ok)
	})

	t.Run("unwatched pages are left alone", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.editGoalName(ctx, "goal-1", "Launch v2")
		require.NoError(t, err)

		require.Equal(t, 0, a.goalPages.Len())
		require.Equal(t, int32(0), a.api.goalPageCalls.Load())
	})

	t.Run("name is trimmed", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		goal, err := a.editGoalName(ctx, "goal-1", "  Launch v2 ")
		require.NoError(t, err)
		require.Equal(t, "Launch v2", goal.Name)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			goalID string
			value  string
		}{
			{name: "missing goal id", goalID: "", value: "Launch"},
			{name: "empty name", goalID: "goal-1", value: ""},
			{name: "blank name", goalID: "goal-1", value: " \t "},
			{name: "too long", goalID: "goal-1", value: strings.Repeat("é", 256)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				a := newTestApp()

				_, err := a.editGoalName(ctx, tt.goalID, tt.value)
				require.ErrorIs(t, err, domain.ErrInvalidInput)
			})
		}
	})

	t.Run("failed edit notifies nobody", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)

		_, err = a.editGoalName(ctx, "goal-404", "Launch v2")
		require.ErrorIs(t, err, domain.ErrNotFound)

		require.Equal(t, int32(1), a.api.goalPageCalls.Load())
	})
}

func TestRevalidate(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	t.Run("key", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)

		notified, err := a.revalidate(ctx, app.GoalPageKey("goal-1"), "")
		require.NoError(t, err)
		require.Equal(t, 1, notified)
		require.Equal(t, int32(2), a.api.goalPageCalls.Load())
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.getWorkMap(ctx, "person-1", false)
		require.NoError(t, err)
		_, err = a.getWorkMap(ctx, "person-2", false)
		require.NoError(t, err)

		notified, err := a.revalidate(ctx, "", app.WorkMapKeyPrefix)
		require.NoError(t, err)
		require.Equal(t, 2, notified)
	})

	t.Run("nothing watched", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		notified, err := a.revalidate(ctx, "v3-GoalPage-unknown", "")
		require.NoError(t, err)
		require.Equal(t, 0, notified)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()

		_, err := a.revalidate(ctx, "", "")
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = a.revalidate(ctx, "a", "b")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	t.Run("drops the page and its watch", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()
		key := app.GoalPageKey("goal-1")

		_, err := a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)
		_, err = a.getCompanyPage(ctx, false)
		require.NoError(t, err)

		require.NoError(t, a.invalidate(ctx, key))

		_, ok := a.goalPages.Get(key)
		require.False(t, ok)
		require.Equal(t, 0, a.bus.Subscribers(key))
		require.Equal(t, 1, a.subscriptions.Len())

		// Notifying the dropped key does not fetch it again
		require.Equal(t, 0, a.bus.Notify(ctx, key))
		require.Equal(t, int32(1), a.api.goalPageCalls.Load())

		_, err = a.getGoalPage(ctx, "goal-1", false)
		require.NoError(t, err)
		require.Equal(t, int32(2), a.api.goalPageCalls.Load())
		require.Equal(t, 1, a.bus.Subscribers(key))
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()
		require.NoError(t, a.invalidate(ctx, "v3-GoalPage-unknown"))
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		a := newTestApp()
		require.ErrorIs(t, a.invalidate(ctx, ""), domain.ErrInvalidInput)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newTestApp()

	_, err := a.getGoalPage(ctx, "goal-1", false)
	require.NoError(t, err)
	_, err = a.getCompanyPage(ctx, false)
	require.NoError(t, err)
	_, err = a.getWorkMap(ctx, "person-1", false)
	require.NoError(t, err)

	a.logout(ctx)

	require.Equal(t, 0, a.goalPages.Len())
	require.Equal(t, 0, a.companyPages.Len())
	require.Equal(t, 0, a.workMaps.Len())
	require.Equal(t, 0, a.subscriptions.Len())
	require.Empty(t, a.bus.Keys())

	// Loading after logout starts over at version 1
	_, err = a.getGoalPage(ctx, "goal-1", false)
	require.NoError(t, err)
	entry, ok := a.goalPages.Get(app.GoalPageKey("goal-1"))
	require.True(t, ok)
	require.Equal(t, uint64(1), entry.Version)
}
