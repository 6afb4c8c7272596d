package domain

import "time"

type Status string

const (
	StatusOnTrack   Status = "on_track"
	StatusCaution   Status = "caution"
	StatusOffTrack  Status = "off_track"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

type Goal struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SpaceID      string     `json:"spaceId"`
	ParentGoalID string     `json:"parentGoalId,omitempty"`
	ChampionID   string     `json:"championId,omitempty"`
	Status       Status     `json:"status"`
	Progress     float64    `json:"progress"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

type Project struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SpaceID    string     `json:"spaceId"`
	GoalID     string     `json:"goalId,omitempty"`
	ChampionID string     `json:"championId,omitempty"`
	Status     Status     `json:"status"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

type GoalPage struct {
	Goal     Goal      `json:"goal"`
	Parent   *Goal     `json:"parent,omitempty"`
	Subgoals []Goal    `json:"subgoals"`
	Projects []Project `json:"projects"`
}

type ProjectPage struct {
	Project Project  `json:"project"`
	Goal    *Goal    `json:"goal,omitempty"`
	Members []Person `json:"members"`
}
