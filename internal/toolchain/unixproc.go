//go:build unix

package toolchain

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// groupedCommand builds an *exec.Cmd in its own process group, so that
// ctx's cancellation (a build timeout, or the build being interrupted)
// kills compiler-driver children too (ccache, distcc, and the like),
// not just the driver process exec.CommandContext would otherwise signal
// alone.
func groupedCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
