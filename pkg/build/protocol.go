// Package build triggers plugin builds, preferring a long-lived build daemon
// over a one-shot build tool subprocess.
package build

// Strategy names the path a build took.
type Strategy string

const (
	StrategyDaemon     Strategy = "daemon"
	StrategySubprocess Strategy = "subprocess"
)

// Request is the single JSON object a client sends to the build daemon,
// followed by a half-close of the write side.
type Request struct {
	Dynamic    bool   `json:"dynamic"`
	Target     string `json:"target"`
	OutputName string `json:"output_name"`
}

// Response is the single JSON object the daemon writes before closing the
// connection.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DynamicFlags returns the build tool flags requesting a dynamic artifact
// named after stem.
func DynamicFlags(stem string) []string {
	return []string{"--dynamic", "--output-name", stem}
}
