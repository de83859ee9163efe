//go:build !unix

package toolchain

import (
	"context"
	"os/exec"
)

// groupedCommand falls back to a plain exec.CommandContext on non-unix
// platforms, where process groups and unix.Kill don't apply; the GNU-like
// toolchain is overwhelmingly used on unix, so this path exists only so
// the package still builds elsewhere.
func groupedCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}
