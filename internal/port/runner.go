package port

import "context"

// CommandRunner executes an external binary and returns stdout and stderr.
// Injected so rasterization can be tested without poppler installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}
