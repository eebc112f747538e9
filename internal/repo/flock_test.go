package repo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestFlock(t *testing.T) {
	t.Parallel()

	lockFile := filepath.Join(t.TempDir(), ".lock")
	if err := os.WriteFile(lockFile, nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Hold the lock from another process for a moment.
	cmd := exec.CommandContext(ctx, "flock", lockFile, "sleep", "0.2")
	err := cmd.Start()
	if err != nil {
		t.Skip()
		return
	}
	time.Sleep(100 * time.Millisecond)

	f, err := os.Open(lockFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fl := Flock{f}
	if err = fl.Lock(); err == nil {
		t.Error(`err = fl.Lock(); err == nil`)
	} else {
		t.Log(err)
	}

	err = cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatal("test timed out waiting for external flock command")
	}
	if err != nil {
		t.Logf("external flock command exited with error: %v", err)
	}

	if err = fl.Lock(); err != nil {
		t.Fatal(err)
	}
	if err = fl.Unlock(); err != nil {
		t.Error(err)
	}
}
