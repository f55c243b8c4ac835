package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/capability"
	"github.com/grovetools/uireload/pkg/host"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/reload"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/grovetools/uireload/pkg/watcher"
	"github.com/grovetools/uireload/tui"
	"github.com/grovetools/uireload/tui/reloadview"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch sources and hot reload the plugin",
		Long: `Loads the plugin, watches the configured source directories and rebuilds
after every quiet period. Each successful build is loaded next to the old one,
published, and the old library is closed once no call uses it.

Examples:
  uireload watch
  uireload watch --tui --flash
  uireload watch --initial build/desktop/libstratum-ui.so`,
		RunE: runWatch,
	}
	cmd.Flags().BoolP("tui", "i", false, "Show the interactive status panel")
	cmd.Flags().Bool("flash", false, "Record redrawn regions for the preview")
	cmd.Flags().Int("fps", 30, "Frames per second driven into the plugin")
	cmd.Flags().String("initial", "", "Artifact to load before the first rebuild")
	cmd.Flags().Bool("no-auto", false, "Start with auto reload disabled")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cli.GetLogger(cmd, "watch")
	useTUI, _ := cmd.Flags().GetBool("tui")
	flash, _ := cmd.Flags().GetBool("flash")
	fps, _ := cmd.Flags().GetInt("fps")
	if initial, _ := cmd.Flags().GetString("initial"); initial != "" {
		cfg.Plugin.Initial = initial
	}
	if noAuto, _ := cmd.Flags().GetBool("no-auto"); noAuto {
		off := false
		cfg.AutoReload = &off
	}
	if fps <= 0 {
		return fmt.Errorf("--fps must be positive")
	}
	interval := time.Second / time.Duration(fps)

	cbs, err := rebind.Native()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager := capability.NewManager(capability.DlOpener{}, uiplugin.Symbols(),
		capability.WithLogger(logging.NewLogger("capability")))
	defer manager.Close()

	w, err := watcher.New(cfg.Watch.Dirs,
		watcher.WithIgnore(cfg.Watch.Ignore...),
		watcher.WithLogger(logging.NewLogger("watcher")))
	if err != nil {
		return err
	}
	defer w.Close()
	go w.Run(ctx)

	coord := reload.New(reload.SettingsFromConfig(cfg), newOrchestrator(cfg), manager, newStore(cfg),
		reload.WithTicks(w.Ticks()),
		reload.WithLogger(logging.NewLogger("reload")))

	h := host.New(manager, cbs, host.WithFlash(flash), host.WithLogger(logging.NewLogger("host")))
	defer h.Close()

	if useTUI {
		// The panel owns the terminal; records still reach the log file.
		restore := logging.SetGlobalOutput(io.Discard)
		defer restore()
	}

	if err := coord.Start(ctx); err != nil {
		return err
	}
	logger.WithField("dirs", w.Roots()).Info("Watching for changes")

	if useTUI {
		tui.InitializeTUI()
		p := tea.NewProgram(reloadview.New(coord, h, interval), tea.WithAltScreen(), tea.WithContext(ctx))
		_, runErr := p.Run()
		cancel()
		<-coord.Done()
		if runErr != nil && !stderrors.Is(runErr, tea.ErrProgramKilled) {
			return runErr
		}
		return nil
	}

	h.Run(ctx, interval)
	<-coord.Done()
	return nil
}
