package domain

import (
	"cmp"
	"slices"
	"strings"
)

type WorkMapItemType string

const (
	WorkMapItemGoal    WorkMapItemType = "goal"
	WorkMapItemProject WorkMapItemType = "project"
)

// WorkMapItem is a node of the goal/project hierarchy shown on a work map
type WorkMapItem struct {
	ID       string          `json:"id"`
	Type     WorkMapItemType `json:"type"`
	Name     string          `json:"name"`
	Status   Status          `json:"status"`
	Children []*WorkMapItem  `json:"children"`
}

type WorkMap struct {
	Person Person         `json:"person"`
	Items  []*WorkMapItem `json:"items"`
}

// BuildGoalTree arranges goals and projects into a forest.
//
// Subgoals are placed under their parent goal and projects under their goal.
// Items whose parent is not among the given goals become roots, as do goals in a parent cycle.
// Siblings are ordered by name, goals before projects.
func BuildGoalTree(goals []Goal, projects []Project) []*WorkMapItem {
	goalItems := make(map[string]*WorkMapItem, len(goals))
	for _, goal := range goals {
		goalItems[goal.ID] = &WorkMapItem{
			ID:       goal.ID,
			Type:     WorkMapItemGoal,
			Name:     goal.Name,
			Status:   goal.Status,
			Children: []*WorkMapItem{},
		}
	}

	roots := []*WorkMapItem{}
	attach := func(parentID string, item *WorkMapItem) {
		parent, ok := goalItems[parentID]
		if parentID == "" || !ok {
			roots = append(roots, item)
			return
		}
		parent.Children = append(parent.Children, item)
	}

	parents := make(map[string]string, len(goals))
	for _, goal := range goals {
		parents[goal.ID] = goal.ParentGoalID
	}

	for _, goal := range goals {
		parentID := goal.ParentGoalID
		if inCycle(parents, goal.ID) {
			parentID = ""
		}
		attach(parentID, goalItems[goal.ID])
	}

	for _, project := range projects {
		attach(project.GoalID, &WorkMapItem{
			ID:       project.ID,
			Type:     WorkMapItemProject,
			Name:     project.Name,
			Status:   project.Status,
			Children: []*WorkMapItem{},
		})
	}

	sortItems(roots)
	return roots
}

// inCycle reports whether following parent links from goalID leads back to it
func inCycle(parents map[string]string, goalID string) bool {
	current := parents[goalID]
	for range len(parents) {
		if current == "" {
			return false
		}
		if current == goalID {
			return true
		}
		current = parents[current]
	}
	return false
}

func sortItems(items []*WorkMapItem) {
	slices.SortStableFunc(items, func(a, b *WorkMapItem) int {
		if a.Type != b.Type {
			if a.Type == WorkMapItemGoal {
				return -1
			}
			return 1
		}
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.ID, b.ID),
		)
	})
	for _, item := range items {
		sortItems(item.Children)
	}
}
