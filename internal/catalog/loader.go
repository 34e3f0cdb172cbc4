package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Loader holds the interview catalog: stages and the tasks within them.
//
// Directory layout:
//
//	<dir>/<stage>/stage.yaml
//	<dir>/<stage>/tasks/<code>.yaml
type Loader struct {
	mu     sync.RWMutex
	stages map[models.InterviewType]*models.Stage
	tasks  map[models.InterviewType]map[models.TaskID]*models.CatalogTask
}

// NewLoader creates an empty catalog
func NewLoader() *Loader {
	return &Loader{
		stages: make(map[models.InterviewType]*models.Stage),
		tasks:  make(map[models.InterviewType]map[models.TaskID]*models.CatalogTask),
	}
}

// LoadFromDir loads every stage directory found under dir.
// Broken stages or tasks are logged and skipped.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading interview catalog", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		stageDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(stageDir, "stage.yaml")); os.IsNotExist(err) {
			continue
		}

		stage, err := l.loadStage(entry.Name(), stageDir)
		if err != nil {
			slog.Warn("failed to load stage", "dir", entry.Name(), "error", err)
			continue
		}

		slog.Info("catalog stage loaded", "stage", stage.Type, "title", stage.Title, "tasks", stage.TasksCount)
	}

	return nil
}

// loadStage loads stage.yaml and the stage's tasks/ directory
func (l *Loader) loadStage(name, dir string) (*models.Stage, error) {
	data, err := os.ReadFile(filepath.Join(dir, "stage.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read stage.yaml: %w", err)
	}

	var sf stageFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse stage.yaml: %w", err)
	}

	stageType := models.InterviewType(sf.Type)
	if stageType == "" {
		stageType = models.InterviewType(name)
	}
	if !stageType.Valid() {
		return nil, fmt.Errorf("unknown stage type %q", stageType)
	}
	if sf.Title == "" {
		return nil, fmt.Errorf("stage title is required")
	}

	stage := &models.Stage{
		Type:           stageType,
		Title:          sf.Title,
		Description:    sf.Description,
		Order:          stageType.Order(),
		Conversational: stageType.Conversational(),
		TimeLimit:      sf.TimeLimit,
	}

	l.mu.Lock()
	l.stages[stageType] = stage
	l.mu.Unlock()

	tasksDir := filepath.Join(dir, "tasks")
	if _, err := os.Stat(tasksDir); err == nil {
		if err := l.loadTasks(stage, tasksDir); err != nil {
			slog.Warn("failed to load tasks", "stage", stageType, "error", err)
		}
	}

	return stage, nil
}

// loadTasks loads all task YAML files of a stage
func (l *Loader) loadTasks(stage *models.Stage, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read tasks dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		task, err := l.loadTask(stage.Type, filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("failed to load task", "stage", stage.Type, "file", entry.Name(), "error", err)
			continue
		}

		l.Add(task)
	}

	return nil
}

// loadTask loads a single task YAML file
func (l *Loader) loadTask(stage models.InterviewType, path string) (*models.CatalogTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse task YAML: %w", err)
	}

	id := strings.TrimSpace(tf.ID)
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if tf.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if stage.Conversational() && tf.Situation == "" {
		return nil, fmt.Errorf("behavioural scenario %s has no situation", id)
	}

	kind := tf.Kind
	if kind == "" {
		kind = "coding"
		if stage.Conversational() {
			kind = "conversation"
		}
	}

	return &models.CatalogTask{
		ID:          models.TaskID(id),
		Stage:       stage,
		Kind:        kind,
		Title:       tf.Title,
		Description: strings.TrimSpace(tf.Description),
		Difficulty:  tf.Difficulty,
		Situation:   strings.TrimSpace(tf.Situation),
		Question:    strings.TrimSpace(tf.Question),
		StarterCode: tf.StarterCode,
		Hints:       tf.Hints,
		TimeLimit:   tf.TimeLimit,
		Skills:      tf.Skills,
	}, nil
}

// Add registers a task, creating a bare stage entry when needed
func (l *Loader) Add(task *models.CatalogTask) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tasks[task.Stage] == nil {
		l.tasks[task.Stage] = make(map[models.TaskID]*models.CatalogTask)
	}
	l.tasks[task.Stage][task.ID] = task

	stage, ok := l.stages[task.Stage]
	if !ok {
		stage = &models.Stage{
			Type:           task.Stage,
			Title:          string(task.Stage),
			Order:          task.Stage.Order(),
			Conversational: task.Stage.Conversational(),
		}
		l.stages[task.Stage] = stage
	}
	stage.TasksCount = len(l.tasks[task.Stage])
}

// Stages returns all loaded stages in interview order
func (l *Loader) Stages() []*models.Stage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Stage, 0, len(l.stages))
	for _, s := range l.stages {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result
}

// Stage returns a stage by type
func (l *Loader) Stage(stage models.InterviewType) *models.Stage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stages[stage]
}

// Tasks returns the tasks of a stage ordered by id (numerically when possible)
func (l *Loader) Tasks(stage models.InterviewType) []*models.CatalogTask {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.CatalogTask, 0, len(l.tasks[stage]))
	for _, t := range l.tasks[stage] {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return lessID(result[i].ID, result[j].ID) })
	return result
}

// Task returns one task of a stage
func (l *Loader) Task(stage models.InterviewType, id models.TaskID) *models.CatalogTask {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tasks[stage][id]
}

// Scenario returns a behavioural scenario by id
func (l *Loader) Scenario(id models.TaskID) (models.Scenario, bool) {
	task := l.Task(models.InterviewBehavioural, id)
	if task == nil {
		return models.Scenario{}, false
	}
	return task.Scenario(), true
}

func lessID(a, b models.TaskID) bool {
	ai, aerr := strconv.Atoi(string(a))
	bi, berr := strconv.Atoi(string(b))
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// --- YAML file structs ---

// stageFile represents the YAML structure of a stage.yaml file
type stageFile struct {
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	TimeLimit   int    `yaml:"time_limit"`
}

// taskFile represents the YAML structure of a task file
type taskFile struct {
	ID          string   `yaml:"id"`
	Kind        string   `yaml:"kind"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Difficulty  string   `yaml:"difficulty"`
	Situation   string   `yaml:"situation"`
	Question    string   `yaml:"question"`
	StarterCode string   `yaml:"starter_code"`
	Hints       []string `yaml:"hints"`
	TimeLimit   int      `yaml:"time_limit"`
	Skills      []string `yaml:"skills"`
}
