package embedding

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptors", "pca"+Extension)
	want := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5.5, -6})

	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !mat.Equal(got, want) {
		t.Errorf("got %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "umap"+Extension))
	if !errors.Is(err, poolerrors.ErrMissingArtifact) {
		t.Errorf("expected missing artifact, got %v", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pca"+Extension)
	if err := os.WriteFile(path, []byte("not snappy"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for corrupt artifact")
	}
}

func TestLoadAll_SkipsAbsent(t *testing.T) {
	dir := t.TempDir()
	if err := Save(Path(dir, "umap"), mat.NewDense(2, 1, []float64{7, 8})); err != nil {
		t.Fatal(err)
	}

	got, err := LoadAll(dir, DefaultMethods)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Method != "umap" {
		t.Fatalf("expected only umap, got %+v", got)
	}
	if r, c := got[0].Values.Dims(); r != 2 || c != 1 {
		t.Errorf("dims = %dx%d, want 2x1", r, c)
	}
}
