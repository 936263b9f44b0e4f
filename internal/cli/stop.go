package cli

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/postwatch/internal/control"
	"github.com/vietddude/postwatch/internal/core/config"
)

var forceStop bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request termination of a running postwatch process",
	Run:   runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&forceStop, "force", false, "terminate immediately (SIGKILL)")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	pid, alive := control.ReadPIDFile(cfg.PIDFile)
	if !alive {
		fmt.Println("postwatch is not running")
		return
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		slog.Error("Failed to find process", "pid", pid, "error", err)
		os.Exit(1)
	}

	sig := syscall.SIGTERM
	if forceStop {
		sig = syscall.SIGKILL
	}
	if err := proc.Signal(sig); err != nil {
		slog.Error("Failed to signal process", "pid", pid, "error", err)
		os.Exit(1)
	}

	fmt.Printf("sent %s to pid %d\n", sig, pid)
}
