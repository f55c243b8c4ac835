package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/internal/daemon/pidfile"
	"github.com/grovetools/uireload/internal/daemon/server"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/paths"
	"github.com/grovetools/uireload/pkg/process"
	"github.com/spf13/cobra"
)

const daemonStopGrace = 5 * time.Second

// NewDaemonCmd returns the build daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the build daemon",
		Long: `The build daemon keeps one process ready to run builds so a rebuild
skips tool start-up. Clients send one JSON request per connection.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the build daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "buildd")
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.Build.DaemonAddr
			}

			pidFile := pidfile.At(paths.DaemonPidFilePath())
			if err := pidFile.Acquire(); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidFile.Release(); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			srv := server.New(newSubprocessBuilder(cfg), cfg.Build.Target, logger,
				server.WithBuildTimeout(cfg.BuildTimeout()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				logger.Info("Received stop signal")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), daemonStopGrace)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			logger.WithField("pid", os.Getpid()).Info("Starting build daemon")
			if err := srv.ListenAndServe(addr); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default: build.daemon_addr)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running build daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.At(paths.DaemonPidFilePath()).Running()
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.Info("Build daemon is not running")
				return nil
			}
			if err := process.Terminate(pid, daemonStopGrace); err != nil {
				return err
			}
			pretty.Success(fmt.Sprintf("Stopped build daemon (PID %d)", pid))
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check build daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			running, pid, err := pidfile.At(paths.DaemonPidFilePath()).Running()
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			state := "stopped"
			if running {
				state = fmt.Sprintf("running (PID %d)", pid)
			}
			// Another process may serve the address without our pid file.
			reach := "reachable"
			conn, dialErr := net.DialTimeout("tcp", cfg.Build.DaemonAddr, cfg.DaemonDialTimeout())
			if dialErr != nil {
				reach = "not reachable"
			} else {
				_ = conn.Close()
			}
			pretty.Fields(
				logging.Field{Key: "Daemon", Value: state},
				logging.Field{Key: "Address", Value: cfg.Build.DaemonAddr + " (" + reach + ")"},
				logging.Field{Key: "Pid file", Value: paths.DaemonPidFilePath()},
			)
			if !running && dialErr != nil {
				os.Exit(1)
			}
			return nil
		},
	}
}
