package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/logging"
)

const maxGoalNameLength = 255

type EditGoalName func(ctx context.Context, goalID string, name string) (domain.Goal, error)
type Revalidate func(ctx context.Context, key string, prefix string) (int, error)
type Logout func(ctx context.Context)
type Invalidate func(ctx context.Context, key string) error

type goalEditor interface {
	EditGoalName(ctx context.Context, goalID string, name string) (domain.Goal, error)
}

type notifier interface {
	Notify(ctx context.Context, key string) int
	NotifyPrefix(ctx context.Context, prefix string) int
}

type clearer interface {
	Clear()
}

type invalidator interface {
	Invalidate(key string)
}

// BuildEditGoalName renames a goal and announces every page showing the goal as stale.
// Watched pages are refetched before it returns.
func BuildEditGoalName(editor goalEditor, bus notifier) EditGoalName {
	return func(ctx context.Context, goalID string, name string) (domain.Goal, error) {
		if goalID == "" {
			return domain.Goal{}, missingID("goal")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return domain.Goal{}, fmt.Errorf("%w: goal name must not be empty", domain.ErrInvalidInput)
		}
		if utf8.RuneCountInString(name) > maxGoalNameLength {
			return domain.Goal{}, fmt.Errorf("%w: goal name longer than %d characters", domain.ErrInvalidInput, maxGoalNameLength)
		}

		goal, err := editor.EditGoalName(ctx, goalID, name)
		if err != nil {
			return domain.Goal{}, fmt.Errorf("could not edit goal name: %w", err)
		}

		notified := bus.Notify(ctx, GoalPageKey(goalID))
		if goal.ParentGoalID != "" {
			notified += bus.Notify(ctx, GoalPageKey(goal.ParentGoalID))
		}
		if goal.SpaceID != "" {
			notified += bus.Notify(ctx, SpacePageKey(goal.SpaceID))
		}
		notified += bus.NotifyPrefix(ctx, WorkMapKeyPrefix)

		logging.FromContext(ctx).InfoContext(ctx, "Edited goal name", "goalID", goalID, "notified", notified)

		return goal, nil
	}
}

// BuildRevalidate notifies either a single key or every key with the given prefix
func BuildRevalidate(bus notifier) Revalidate {
	return func(ctx context.Context, key string, prefix string) (int, error) {
		switch {
		case key != "" && prefix != "":
			return 0, fmt.Errorf("%w: only one of key and prefix may be given", domain.ErrInvalidInput)
		case key != "":
			return bus.Notify(ctx, key), nil
		case prefix != "":
			return bus.NotifyPrefix(ctx, prefix), nil
		default:
			return 0, fmt.Errorf("%w: missing key or prefix", domain.ErrInvalidInput)
		}
	}
}

// BuildLogout drops the revalidation subscriptions and then every cached page
func BuildLogout(subscriptions *Subscriptions, caches ...clearer) Logout {
	return func(ctx context.Context) {
		watched := subscriptions.Len()
		subscriptions.Clear()
		for _, c := range caches {
			c.Clear()
		}
		logging.FromContext(ctx).InfoContext(ctx, "Cleared page data", "subscriptions", watched, "caches", len(caches))
	}
}

// BuildInvalidate drops key from every cache. The key is no longer watched, and the next read
// fetches it again.
func BuildInvalidate(caches ...invalidator) Invalidate {
	return func(ctx context.Context, key string) error {
		if key == "" {
			return fmt.Errorf("%w: missing key", domain.ErrInvalidInput)
		}
		for _, c := range caches {
			c.Invalidate(key)
		}
		logging.FromContext(ctx).InfoContext(ctx, "Invalidated page data", "key", key)
		return nil
	}
}
