package reporting_test

import (
	"testing"

	"github.com/operately/pagedata/internal/reporting"
	"github.com/stretchr/testify/require"
)

func TestReportingMeta(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()

		meta := reporting.MetaFromContext(t.Context())
		require.Empty(t, meta.Tags())
		require.Empty(t, meta.Extras())
		require.Empty(t, meta.UserID())
	})

	t.Run("values accumulate", func(t *testing.T) {
		t.Parallel()

		ctx := reporting.AddTagsToContext(t.Context(), map[string]string{"port": "goal_page"})
		ctx = reporting.AddTagsToContext(ctx, map[string]string{"cache": "goal_page"})
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"key": "v3-GoalPage-1"})
		ctx = reporting.SetUserIDInContext(ctx, "user-1")

		meta := reporting.MetaFromContext(ctx)
		require.Equal(t, map[string]string{"port": "goal_page", "cache": "goal_page"}, meta.Tags())
		require.Equal(t, map[string]string{"key": "v3-GoalPage-1"}, meta.Extras())
		require.Equal(t, "user-1", meta.UserID())
	})

	t.Run("parent context is not modified", func(t *testing.T) {
		t.Parallel()

		parent := reporting.AddTagsToContext(t.Context(), map[string]string{"port": "goal_page"})
		child := reporting.AddTagsToContext(parent, map[string]string{"port": "work_map"})

		require.Equal(t, map[string]string{"port": "goal_page"}, reporting.MetaFromContext(parent).Tags())
		require.Equal(t, map[string]string{"port": "work_map"}, reporting.MetaFromContext(child).Tags())
	})

	t.Run("report without hub does not crash", func(t *testing.T) {
		t.Parallel()

		reporting.Report(t.Context(), nil)
	})
}
