package app

import "github.com/operately/pagedata/internal/adapters/cache"

// Bumped whenever the shape of a cached page changes
const pageDataVersion = "v3"

// WorkMapKeyPrefix is shared by the work maps of every person
const WorkMapKeyPrefix = pageDataVersion + "-PersonalWorkMap-"

func GoalPageKey(goalID string) string {
	return cache.Key(pageDataVersion, "GoalPage", goalID)
}

func ProjectPageKey(projectID string) string {
	return cache.Key(pageDataVersion, "ProjectPage", projectID)
}

func SpacePageKey(spaceID string) string {
	return cache.Key(pageDataVersion, "SpacePage", spaceID)
}

func CompanyPageKey() string {
	return cache.Key(pageDataVersion, "CompanyPage")
}

func WorkMapKey(personID string) string {
	return cache.Key(pageDataVersion, "PersonalWorkMap", personID)
}
