// Package types provides the task descriptors and output schema shared by
// every molpool component.
package types

import (
	"fmt"
	"strings"
)

// TaskKind tags a task as continuous or binary.
type TaskKind string

const (
	// Regression tasks carry a continuous endpoint.
	Regression TaskKind = "regression"

	// Classification tasks carry a 0/1 endpoint and a binarized decision channel.
	Classification TaskKind = "classification"
)

// Kinds lists the task kinds in output order.
var Kinds = []TaskKind{Regression, Classification}

// BinarySuffix names the binarized companion channel of a classification task.
const BinarySuffix = "_bin"

// Header conventions used when no explicit task schema is supplied.
const (
	RegressionPrefix     = "reg_"
	ClassificationPrefix = "clf_"
)

// Valid reports whether k is a known kind.
func (k TaskKind) Valid() bool {
	return k == Regression || k == Classification
}

// Task describes one predicted endpoint.
type Task struct {
	// Name is the column name of the task in the dataset table
	Name string `json:"name" yaml:"name"`

	// Kind is regression or classification
	Kind TaskKind `json:"kind" yaml:"kind"`

	// HasBinaryChannel marks a classification task whose tables also carry <name>_bin
	HasBinaryChannel bool `json:"has_binary_channel" yaml:"has_binary_channel"`
}

// BinaryColumn returns the name of the binarized companion column.
func (t Task) BinaryColumn() string {
	return t.Name + BinarySuffix
}

// TaskSet is an ordered collection of task descriptors with name lookup.
// It is built once from the dataset schema and shared read-only afterwards.
type TaskSet struct {
	tasks  []Task
	byName map[string]int
	binary map[string]int
}

// NewTaskSet validates tasks and indexes them by name.
func NewTaskSet(tasks []Task) (*TaskSet, error) {
	s := &TaskSet{
		tasks:  make([]Task, 0, len(tasks)),
		byName: make(map[string]int, len(tasks)),
		binary: make(map[string]int),
	}
	for _, t := range tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: empty task name", ErrInvalidTask)
		}
		if !t.Kind.Valid() {
			return nil, fmt.Errorf("%w: task %s has unknown kind %q", ErrInvalidTask, t.Name, t.Kind)
		}
		if t.Kind == Regression && t.HasBinaryChannel {
			return nil, fmt.Errorf("%w: regression task %s cannot have a binary channel", ErrInvalidTask, t.Name)
		}
		if _, dup := s.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task %s", ErrInvalidTask, t.Name)
		}
		s.byName[t.Name] = len(s.tasks)
		if t.Kind == Classification {
			s.binary[t.BinaryColumn()] = len(s.tasks)
		}
		s.tasks = append(s.tasks, t)
	}
	return s, nil
}

// TasksFromHeader derives descriptors from column names: reg_* columns are
// regression tasks, clf_* columns are classification tasks, and a column
// named <task>_bin marks the binary channel of <task>. Other columns are
// ignored.
func TasksFromHeader(header []string) (*TaskSet, error) {
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[c] = true
	}

	var tasks []Task
	for _, c := range header {
		if strings.HasSuffix(c, BinarySuffix) && present[strings.TrimSuffix(c, BinarySuffix)] {
			continue
		}
		switch {
		case strings.HasPrefix(c, RegressionPrefix):
			tasks = append(tasks, Task{Name: c, Kind: Regression})
		case strings.HasPrefix(c, ClassificationPrefix):
			tasks = append(tasks, Task{
				Name:             c,
				Kind:             Classification,
				HasBinaryChannel: present[c+BinarySuffix],
			})
		}
	}
	return NewTaskSet(tasks)
}

// All returns the tasks in declaration order.
func (s *TaskSet) All() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Len returns the number of tasks.
func (s *TaskSet) Len() int {
	return len(s.tasks)
}

// ByKind returns the tasks of one kind in declaration order.
func (s *TaskSet) ByKind(kind TaskKind) []Task {
	var out []Task
	for _, t := range s.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the task with the given name.
func (s *TaskSet) Get(name string) (Task, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Task{}, false
	}
	return s.tasks[i], true
}

// Lookup resolves a column name to its task. binary is true when the column is
// the binarized channel of a classification task rather than its score.
func (s *TaskSet) Lookup(column string) (task Task, binary bool, ok bool) {
	if i, found := s.byName[column]; found {
		return s.tasks[i], false, true
	}
	if i, found := s.binary[column]; found {
		return s.tasks[i], true, true
	}
	return Task{}, false, false
}
