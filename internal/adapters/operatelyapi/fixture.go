package operatelyapi

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/operately/pagedata/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/company.yaml
var defaultFixtures []byte

// fixtureAPI serves a small in-memory company.
// Goal name edits are kept, so stale pages can be observed locally.
type fixtureAPI struct {
	company  domain.Company
	people   []domain.Person
	spaces   []domain.Space
	goals    []domain.Goal
	projects []domain.Project

	lock sync.Mutex
}

type fixtureFile struct {
	Company  fixtureCompany   `yaml:"company"`
	People   []fixturePerson  `yaml:"people"`
	Spaces   []fixtureSpace   `yaml:"spaces"`
	Goals    []fixtureGoal    `yaml:"goals"`
	Projects []fixtureProject `yaml:"projects"`
}

type fixtureCompany struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type fixturePerson struct {
	ID       string `yaml:"id"`
	FullName string `yaml:"fullName"`
	Title    string `yaml:"title"`
}

type fixtureSpace struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Mission string `yaml:"mission"`
}

type fixtureGoal struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	SpaceID      string     `yaml:"spaceId"`
	ParentGoalID string     `yaml:"parentGoalId"`
	ChampionID   string     `yaml:"championId"`
	Status       string     `yaml:"status"`
	Progress     float64    `yaml:"progress"`
	Deadline     *time.Time `yaml:"deadline"`
}

type fixtureProject struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	SpaceID    string     `yaml:"spaceId"`
	GoalID     string     `yaml:"goalId"`
	ChampionID string     `yaml:"championId"`
	Status     string     `yaml:"status"`
	Deadline   *time.Time `yaml:"deadline"`
}

// NewFixtureAPI serves the built-in fixture company
func NewFixtureAPI() *fixtureAPI {
	api, err := ParseFixtures(defaultFixtures)
	if err != nil {
		panic(fmt.Errorf("invalid built-in fixtures: %w", err))
	}
	return api
}

func NewFixtureAPIFromFile(path string) (*fixtureAPI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures builds a fixture API from a YAML document.
// Unknown fields, duplicate ids and references to missing entities are rejected.
func ParseFixtures(data []byte) (*fixtureAPI, error) {
	var file fixtureFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("fixtures: parsing YAML: %w", err)
	}

	if file.Company.ID == "" {
		return nil, errors.New("fixtures: missing company id")
	}

	api := &fixtureAPI{
		company:  domain.Company{ID: file.Company.ID, Name: file.Company.Name},
		people:   make([]domain.Person, 0, len(file.People)),
		spaces:   make([]domain.Space, 0, len(file.Spaces)),
		goals:    make([]domain.Goal, 0, len(file.Goals)),
		projects: make([]domain.Project, 0, len(file.Projects)),
	}

	seen := map[string]bool{}
	unique := func(kind string, id string) error {
		if id == "" {
			return fmt.Errorf("fixtures: %s without id", kind)
		}
		if seen[kind+"/"+id] {
			return fmt.Errorf("fixtures: duplicate %s %q", kind, id)
		}
		seen[kind+"/"+id] = true
		return nil
	}
	exists := func(kind string, id string, referencedBy string) error {
		if id == "" || seen[kind+"/"+id] {
			return nil
		}
		return fmt.Errorf("fixtures: %s references unknown %s %q", referencedBy, kind, id)
	}

	for _, p := range file.People {
		if err := unique("person", p.ID); err != nil {
			return nil, err
		}
		api.people = append(api.people, domain.Person(p))
	}
	for _, s := range file.Spaces {
		if err := unique("space", s.ID); err != nil {
			return nil, err
		}
		api.spaces = append(api.spaces, domain.Space(s))
	}
	for _, g := range file.Goals {
		if err := unique("goal", g.ID); err != nil {
			return nil, err
		}
	}
	for _, g := range file.Goals {
		for kind, id := range map[string]string{"space": g.SpaceID, "goal": g.ParentGoalID, "person": g.ChampionID} {
			if err := exists(kind, id, "goal "+g.ID); err != nil {
				return nil, err
			}
		}
		api.goals = append(api.goals, domain.Goal{
			ID:           g.ID,
			Name:         g.Name,
			SpaceID:      g.SpaceID,
			ParentGoalID: g.ParentGoalID,
			ChampionID:   g.ChampionID,
			Status:       domain.Status(g.Status),
			Progress:     g.Progress,
			Deadline:     g.Deadline,
		})
	}
	for _, p := range file.Projects {
		if err := unique("project", p.ID); err != nil {
			return nil, err
		}
		for kind, id := range map[string]string{"space": p.SpaceID, "goal": p.GoalID, "person": p.ChampionID} {
			if err := exists(kind, id, "project "+p.ID); err != nil {
				return nil, err
			}
		}
		api.projects = append(api.projects, domain.Project{
			ID:         p.ID,
			Name:       p.Name,
			SpaceID:    p.SpaceID,
			GoalID:     p.GoalID,
			ChampionID: p.ChampionID,
			Status:     domain.Status(p.Status),
			Deadline:   p.Deadline,
		})
	}

	return api, nil
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}

func (f *fixtureAPI) goal(goalID string) (domain.Goal, bool) {
	index := slices.IndexFunc(f.goals, func(g domain.Goal) bool { return g.ID == goalID })
	if index == -1 {
		return domain.Goal{}, false
	}
	return f.goals[index], true
}

func (f *fixtureAPI) person(personID string) (domain.Person, bool) {
	index := slices.IndexFunc(f.people, func(p domain.Person) bool { return p.ID == personID })
	if index == -1 {
		return domain.Person{}, false
	}
	return f.people[index], true
}

func (f *fixtureAPI) GetGoalPage(ctx context.Context, goalID string) (domain.GoalPage, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	goal, ok := f.goal(goalID)
	if !ok {
		return domain.GoalPage{}, notFound("goal", goalID)
	}

	page := domain.GoalPage{
		Goal:     goal,
		Subgoals: []domain.Goal{},
		Projects: []domain.Project{},
	}
	if parent, ok := f.goal(goal.ParentGoalID); ok {
		page.Parent = &parent
	}
	for _, g := range f.goals {
		if g.ParentGoalID == goalID {
			page.Subgoals = append(page.Subgoals, g)
		}
	}
	for _, p := range f.projects {
		if p.GoalID == goalID {
			page.Projects = append(page.Projects, p)
		}
	}
	return page, nil
}

func (f *fixtureAPI) GetProjectPage(ctx context.Context, projectID string) (domain.ProjectPage, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	index := slices.IndexFunc(f.projects, func(p domain.Project) bool { return p.ID == projectID })
	if index == -1 {
		return domain.ProjectPage{}, notFound("project", projectID)
	}
	project := f.projects[index]

	page := domain.ProjectPage{
		Project: project,
		Members: []domain.Person{},
	}
	if goal, ok := f.goal(project.GoalID); ok {
		page.Goal = &goal
	}
	if champion, ok := f.person(project.ChampionID); ok {
		page.Members = append(page.Members, champion)
	}
	return page, nil
}

func (f *fixtureAPI) GetSpacePage(ctx context.Context, spaceID string) (domain.SpacePage, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	index := slices.IndexFunc(f.spaces, func(s domain.Space) bool { return s.ID == spaceID })
	if index == -1 {
		return domain.SpacePage{}, notFound("space", spaceID)
	}

	page := domain.SpacePage{
		Space:    f.spaces[index],
		Members:  []domain.Person{},
		Goals:    []domain.Goal{},
		Projects: []domain.Project{},
	}
	memberIDs := []string{}
	for _, g := range f.goals {
		if g.SpaceID == spaceID {
			page.Goals = append(page.Goals, g)
			memberIDs = append(memberIDs, g.ChampionID)
		}
	}
	for _, p := range f.projects {
		if p.SpaceID == spaceID {
			page.Projects = append(page.Projects, p)
			memberIDs = append(memberIDs, p.ChampionID)
		}
	}
	for _, person := range f.people {
		if slices.Contains(memberIDs, person.ID) {
			page.Members = append(page.Members, person)
		}
	}
	return page, nil
}

func (f *fixtureAPI) GetCompanyPage(ctx context.Context) (domain.CompanyPage, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return domain.CompanyPage{
		Company: f.company,
		Spaces:  slices.Clone(f.spaces),
		People:  slices.Clone(f.people),
	}, nil
}

func (f *fixtureAPI) GetPerson(ctx context.Context, personID string) (domain.Person, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	person, ok := f.person(personID)
	if !ok {
		return domain.Person{}, notFound("person", personID)
	}
	return person, nil
}

func (f *fixtureAPI) ListGoalsForPerson(ctx context.Context, personID string) ([]domain.Goal, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.person(personID); !ok {
		return nil, notFound("person", personID)
	}

	goals := []domain.Goal{}
	for _, g := range f.goals {
		if g.ChampionID == personID {
			goals = append(goals, g)
		}
	}
	return goals, nil
}

func (f *fixtureAPI) ListProjectsForPerson(ctx context.Context, personID string) ([]domain.Project, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.person(personID); !ok {
		return nil, notFound("person", personID)
	}

	projects := []domain.Project{}
	for _, p := range f.projects {
		if p.ChampionID == personID {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func (f *fixtureAPI) EditGoalName(ctx context.Context, goalID string, name string) (domain.Goal, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if strings.TrimSpace(name) == "" {
		return domain.Goal{}, fmt.Errorf("%w: goal name must not be empty", domain.ErrInvalidInput)
	}

	index := slices.IndexFunc(f.goals, func(g domain.Goal) bool { return g.ID == goalID })
	if index == -1 {
		return domain.Goal{}, notFound("goal", goalID)
	}
	f.goals[index].Name = name
	return f.goals[index], nil
}
