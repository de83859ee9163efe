//go:build unix

package toolchain

import (
	"context"
	"testing"
)

func TestGroupedCommandSetsProcessGroup(t *testing.T) {
	cmd := groupedCommand(context.Background(), "true")
	attr := cmd.SysProcAttr
	if attr == nil || !attr.Setpgid {
		t.Errorf("groupedCommand: SysProcAttr = %+v, want Setpgid=true", cmd.SysProcAttr)
	}
	if cmd.Cancel == nil {
		t.Error("groupedCommand: Cancel is nil, want a process-group kill func")
	}
}
