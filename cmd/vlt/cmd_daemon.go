package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vlt/internal/daemon"
	"vlt/internal/logging"
	"vlt/internal/summary"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run and control the local sync daemon",
	Long: `The daemon batches outbound sync traffic and serves thread
summarisation over localhost HTTP. Every vlt command works without it;
running one makes sync and summaries faster.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the daemon in the foreground",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a daemon is reachable",
	RunE:  runDaemonStatus,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop any running daemon and start a new one",
	RunE:  runDaemonRestart,
}

func init() {
	daemonCmd.PersistentFlags().StringVar(&daemonAddr, "addr", daemon.DefaultAddr, "listen address")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
}

func pidFilePath(a *app) string {
	return filepath.Join(a.cfg.Root(), ".vlt", "daemon.pid")
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureProject(); err != nil {
		return err
	}

	pidFile := pidFilePath(a)
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidFile)

	chat := a.chatClient()
	summarizer := summary.NewSummarizer(a.st, chat, a.cfg.Oracle.SynthesisModel, logging.Named("summary"))
	queue := daemon.NewQueue(a.settings.SyncURL, a.settings.SyncToken, logging.Named("daemon"))
	server := daemon.NewServer(daemonAddr, a.st, queue, summarizer, logging.Named("daemon"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	data, err := os.ReadFile(pidFilePath(a))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("daemon is not running")
			return nil
		}
		return err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("malformed pid file: %w", err)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			fmt.Println("daemon is not running")
			return os.Remove(pidFilePath(a))
		}
		return fmt.Errorf("stop daemon pid %d: %w", pid, err)
	}
	fmt.Println("stopped daemon", pid)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemonAddr)
	if err := client.Health(cmd.Context()); err != nil {
		fmt.Println("daemon: unavailable")
		return nil
	}
	status, err := client.Status(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("daemon: healthy (pending %d, failed %d, sent %d)\n",
		status.Pending, status.Failed, status.Sent)
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	if err := runDaemonStop(cmd, args); err != nil {
		return err
	}

	// Give the old listener a moment to release the port.
	deadline := time.Now().Add(3 * time.Second)
	client := daemon.NewClient(daemonAddr)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(cmd.Context(), 200*time.Millisecond)
		err := client.Health(ctx)
		cancel()
		if err != nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	return runDaemonStart(cmd, args)
}
