package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/tui/theme"
)

// ErrorHandler prints user-friendly messages for reload errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to out.
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints err with a hint for its code and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := theme.DefaultTheme
	prefix := t.Error.Render(theme.IconError)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s Configuration not found. Create uireload.yml or pass --config.\n", prefix)
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%s %v\n", prefix, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Run 'uireload config schema' to see the accepted keys."))
	case errors.ErrCodeDaemonUnavailable:
		fmt.Fprintf(h.Out, "%s Build daemon %v is not reachable\n", prefix, detail(err, "addr"))
		fmt.Fprintln(h.Out, t.Muted.Render("Start it with 'uireload daemon start' or set build.disable_daemon."))
	case errors.ErrCodeBuildLaunch:
		fmt.Fprintf(h.Out, "%s Build tool %v could not be started\n", prefix, detail(err, "tool"))
		fmt.Fprintln(h.Out, t.Muted.Render("Check build.tool and build.work_dir in uireload.yml."))
	case errors.ErrCodeBuildTimeout:
		fmt.Fprintf(h.Out, "%s Build of %v did not finish within %v\n", prefix,
			detail(err, "stem"), detail(err, "timeout"))
	case errors.ErrCodeWatcherInit:
		fmt.Fprintf(h.Out, "%s Cannot watch %v\n", prefix, detail(err, "dir"))
	default:
		fmt.Fprintf(h.Out, "%s Error: %v\n", prefix, err)
	}

	if h.Verbose {
		if reloadErr, ok := err.(*errors.ReloadError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", reloadErr.ToJSON())
		}
	}
	return err
}

func detail(err error, key string) interface{} {
	v, ok := errors.Detail(err, key)
	if !ok {
		return "?"
	}
	return v
}
