package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestTasksFromHeader(t *testing.T) {
	header := []string{"compound_id", "smiles", "reg_logp", "clf_active", "clf_active_bin", "clf_tox", "notes"}

	set, err := TasksFromHeader(header)
	if err != nil {
		t.Fatalf("TasksFromHeader failed: %v", err)
	}

	want := []Task{
		{Name: "reg_logp", Kind: Regression},
		{Name: "clf_active", Kind: Classification, HasBinaryChannel: true},
		{Name: "clf_tox", Kind: Classification},
	}
	if got := set.All(); !reflect.DeepEqual(got, want) {
		t.Errorf("tasks = %+v, want %+v", got, want)
	}
}

func TestTaskSet_Lookup(t *testing.T) {
	set, err := NewTaskSet([]Task{
		{Name: "reg_logp", Kind: Regression},
		{Name: "clf_active", Kind: Classification, HasBinaryChannel: true},
	})
	if err != nil {
		t.Fatalf("NewTaskSet failed: %v", err)
	}

	tests := []struct {
		column string
		task   string
		binary bool
		ok     bool
	}{
		{"reg_logp", "reg_logp", false, true},
		{"clf_active", "clf_active", false, true},
		{"clf_active_bin", "clf_active", true, true},
		{"reg_logp_bin", "", false, false},
		{"smiles", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			task, binary, ok := set.Lookup(tt.column)
			if ok != tt.ok || binary != tt.binary || task.Name != tt.task {
				t.Errorf("Lookup(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.column, task.Name, binary, ok, tt.task, tt.binary, tt.ok)
			}
		})
	}
}

func TestTaskSet_ByKind(t *testing.T) {
	set, err := NewTaskSet([]Task{
		{Name: "clf_b", Kind: Classification},
		{Name: "reg_a", Kind: Regression},
		{Name: "clf_a", Kind: Classification},
	})
	if err != nil {
		t.Fatalf("NewTaskSet failed: %v", err)
	}

	clf := set.ByKind(Classification)
	if len(clf) != 2 || clf[0].Name != "clf_b" || clf[1].Name != "clf_a" {
		t.Errorf("ByKind(classification) = %+v, want declaration order [clf_b clf_a]", clf)
	}
	if len(set.ByKind(Regression)) != 1 {
		t.Error("expected one regression task")
	}
}

func TestNewTaskSet_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
	}{
		{"empty name", []Task{{Kind: Regression}}},
		{"unknown kind", []Task{{Name: "x", Kind: "ranking"}}},
		{"duplicate", []Task{{Name: "x", Kind: Regression}, {Name: "x", Kind: Classification}}},
		{"regression with binary", []Task{{Name: "x", Kind: Regression, HasBinaryChannel: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTaskSet(tt.tasks)
			if !errors.Is(err, ErrInvalidTask) {
				t.Errorf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}
