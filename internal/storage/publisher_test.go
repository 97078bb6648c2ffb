package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPublisher_PublishAndFetch(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pub := NewPublisher(store, "/molpool/runs/", nil)

	runDir := t.TempDir()
	writeFile(t, filepath.Join(runDir, "pool", "bagger", "columns.json"), `{"regression":["reg_y"],"classification":[]}`)
	writeFile(t, filepath.Join(runDir, "pool", "bagger", "groups.json"), `{}`)

	files := []string{
		filepath.Join("pool", "bagger", "columns.json"),
		filepath.Join("pool", "bagger", "groups.json"),
	}
	keys, err := pub.Publish(ctx, "run-1", runDir, files)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{"molpool/runs/run-1/pool/bagger/columns.json", "molpool/runs/run-1/pool/bagger/groups.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}

	dest := t.TempDir()
	local, err := pub.FetchTrained(ctx, pub.RunPrefix("run-1"), filepath.Join("pool", "bagger"), dest)
	if err != nil {
		t.Fatalf("FetchTrained failed: %v", err)
	}
	if len(local) != 2 {
		t.Fatalf("fetched %v", local)
	}
	raw, err := os.ReadFile(filepath.Join(dest, "pool", "bagger", "columns.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"regression":["reg_y"],"classification":[]}` {
		t.Errorf("unexpected content %s", raw)
	}
}

func TestPublisher_FetchMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewPublisher(store, "", nil).FetchTrained(context.Background(), "nothing", "pool/bagger", t.TempDir())
	if !errors.Is(err, poolerrors.ErrMissingArtifact) {
		t.Errorf("expected missing artifact, got %v", err)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("expected success after 3 calls, got %d calls, err %v", calls, err)
	}

	calls = 0
	err = retry(ctx, 2, time.Millisecond, func() error {
		calls++
		return errors.New("always")
	})
	if err == nil || calls != 3 {
		t.Errorf("expected 3 attempts then failure, got %d calls, err %v", calls, err)
	}

	calls = 0
	err = retry(ctx, 5, time.Millisecond, func() error {
		calls++
		return backoff.Permanent(ErrObjectNotFound)
	})
	if !errors.Is(err, ErrObjectNotFound) || calls != 1 {
		t.Errorf("permanent error should stop retries, got %d calls, err %v", calls, err)
	}
}
