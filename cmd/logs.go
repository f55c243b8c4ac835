package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grovetools/uireload/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show today's log file of a component",
		Long: `Prints the log file a component writes under .uireload/logs. With -f the
file is followed, moving on to the next day's file after midnight.

Examples:
  uireload logs
  uireload logs -f --component build
  uireload logs --tail 50`,
		RunE: runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().String("component", "reload", "Component whose log to show")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end (default: all)")
	return cmd
}

func runLogs(cmd *cobra.Command, _ []string) error {
	component, _ := cmd.Flags().GetString("component")
	follow, _ := cmd.Flags().GetBool("follow")
	n, _ := cmd.Flags().GetInt("tail")
	out := cmd.OutOrStdout()

	path := logging.LogFilePath(component, time.Now())
	if path == "" {
		return fmt.Errorf("cannot determine log directory")
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		lines, err := lastLines(f, n)
		f.Close()
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
	case os.IsNotExist(err) && follow:
		// Followed below once the component starts writing.
	case os.IsNotExist(err):
		return fmt.Errorf("no log for %s today (%s)", component, path)
	default:
		return err
	}

	if !follow {
		return nil
	}
	check := time.NewTicker(rotationCheck)
	defer check.Stop()
	return followLog(cmd.Context(), out, component, time.Now, check.C)
}

// rotationCheck is how often a follow looks for the next day's file.
const rotationCheck = 30 * time.Second

// followLog prints lines appended to the component's log and moves on to the
// next day's file, read from its start, once the date changes.
func followLog(ctx context.Context, out io.Writer, component string, now func() time.Time, check <-chan time.Time) error {
	path := logging.LogFilePath(component, now())
	t, err := tailLog(path, &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd})
	if err != nil {
		return err
	}
	defer func() {
		if t != nil {
			t.Cleanup()
		}
	}()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(out, line.Text)
		case <-check:
			next := logging.LogFilePath(component, now())
			if next == path {
				continue
			}
			_ = t.Stop()
			t.Cleanup()
			if t, err = tailLog(next, nil); err != nil {
				return err
			}
			path = next
		case <-ctx.Done():
			return t.Stop()
		}
	}
}

func tailLog(path string, from *tail.SeekInfo) (*tail.Tail, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  from,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to follow %s: %w", path, err)
	}
	return t, nil
}

// lastLines reads r and returns its last n lines, or all when n < 0.
func lastLines(r io.Reader, n int) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n >= 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
