package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile_WriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.pid")

	if err := WritePIDFile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	pid, alive := ReadPIDFile(path)
	if pid != os.Getpid() {
		t.Errorf("expected own pid %d, got %d", os.Getpid(), pid)
	}
	if !alive {
		t.Error("expected own process reported alive")
	}

	RemovePIDFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected pidfile removed")
	}
}

func TestWritePIDFile_RejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.pid")

	// Marker pointing at this very process simulates a running instance
	if err := WritePIDFile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := WritePIDFile(path); err == nil {
		t.Error("expected error when marker points at a live process")
	}
}

func TestWritePIDFile_ReplacesStaleMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.pid")

	// Huge pid that cannot exist on this host
	if err := os.WriteFile(path, []byte("4194305\n"), 0o644); err != nil {
		t.Fatalf("failed to seed stale marker: %v", err)
	}

	if err := WritePIDFile(path); err != nil {
		t.Fatalf("expected stale marker replaced, got %v", err)
	}
	pid, _ := ReadPIDFile(path)
	if pid != os.Getpid() {
		t.Errorf("expected own pid after replace, got %d", pid)
	}
}

func TestRemovePIDFile_KeepsForeignMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.pid")

	if err := os.WriteFile(path, []byte("4194305\n"), 0o644); err != nil {
		t.Fatalf("failed to seed marker: %v", err)
	}

	RemovePIDFile(path)
	if _, err := os.Stat(path); err != nil {
		t.Error("marker owned by another process must not be removed")
	}
}

func TestReadPIDFile_MalformedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.pid")

	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("failed to seed marker: %v", err)
	}

	if pid, alive := ReadPIDFile(path); pid != 0 || alive {
		t.Errorf("expected (0,false) for malformed marker, got (%d,%v)", pid, alive)
	}

	if pid, alive := ReadPIDFile(filepath.Join(t.TempDir(), "absent.pid")); pid != 0 || alive {
		t.Errorf("expected (0,false) for missing marker, got (%d,%v)", pid, alive)
	}
}
