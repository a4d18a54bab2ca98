package module_test

import (
	"testing"

	"github.com/simkernel/kernel/module"
)

func TestExecutionPolicyValidate(t *testing.T) {
	cases := []struct {
		name    string
		policy  module.ExecutionPolicy
		wantErr bool
	}{
		{"synchronous direct ok", module.ExecutionPolicy{Mode: module.Synchronous, Strategy: module.Direct}, false},
		{"synchronous gdb rejected", module.ExecutionPolicy{Mode: module.Synchronous, Strategy: module.GDBAccess}, true},
		{"frame synced direct rejected", module.ExecutionPolicy{Mode: module.FrameSynced, Strategy: module.Direct}, true},
		{"frame synced gdb ok", module.ExecutionPolicy{Mode: module.FrameSynced, Strategy: module.GDBAccess}, false},
		{"asynchronous shared ok", module.ExecutionPolicy{Mode: module.Asynchronous, Strategy: module.SharedAccess}, false},
		{"hz out of range", module.ExecutionPolicy{Mode: module.Synchronous, Strategy: module.Direct, TargetHz: 61}, true},
		{"negative hz", module.ExecutionPolicy{Mode: module.Synchronous, Strategy: module.Direct, TargetHz: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.policy.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestClampHz(t *testing.T) {
	if got := module.ClampHz(-5); got != 0 {
		t.Fatalf("ClampHz(-5) = %d, want 0", got)
	}
	if got := module.ClampHz(120); got != 60 {
		t.Fatalf("ClampHz(120) = %d, want 60", got)
	}
	if got := module.ClampHz(30); got != 30 {
		t.Fatalf("ClampHz(30) = %d, want 30", got)
	}
}
