package control

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// WritePIDFile writes the process-identity marker so external tooling can
// detect a live scheduler and request termination. A marker belonging to a
// still-running process is an error; a stale one is replaced.
func WritePIDFile(path string) error {
	if pid, alive := ReadPIDFile(path); alive {
		return fmt.Errorf("already running with pid %d (pidfile %s)", pid, path)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// RemovePIDFile removes the marker. Only removes a marker owned by this
// process.
func RemovePIDFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err == nil && pid != os.Getpid() {
		return
	}
	_ = os.Remove(path)
}

// ReadPIDFile reads the marker and probes whether that process is alive.
func ReadPIDFile(path string) (pid int, alive bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// Signal 0 probes existence without delivering anything
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}
