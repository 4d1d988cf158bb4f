package main

import "testing"

func TestCommandTree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args       []string
		structured bool
	}{
		{args: []string{"serve"}, structured: true},
		{args: []string{"worker"}, structured: true},
		{args: []string{"migrate"}, structured: true},
		{args: []string{"seed"}, structured: true},
		{args: []string{"users", "bootstrap-admin"}},
		{args: []string{"api", "login"}},
		{args: []string{"api", "clients", "list"}},
		{args: []string{"api", "clients", "create"}},
		{args: []string{"api", "clients", "delete"}},
		{args: []string{"api", "contracts", "renewals"}},
	}
	for _, tt := range tests {
		cmd, _, err := rootCmd.Find(tt.args)
		if err != nil || cmd == nil || cmd.Name() != tt.args[len(tt.args)-1] {
			t.Errorf("%v is not registered: cmd=%v err=%v", tt.args, cmd, err)
			continue
		}
		if got := commandUsesStructuredLogging(cmd); got != tt.structured {
			t.Errorf("%s: structured logging = %v, want %v", cmd.CommandPath(), got, tt.structured)
		}
	}
}

func TestWorkerHasOnceFlag(t *testing.T) {
	t.Parallel()

	cmd, _, err := rootCmd.Find([]string{"worker"})
	if err != nil {
		t.Fatalf("Find(worker) error = %v", err)
	}
	if cmd.Flags().Lookup("once") == nil {
		t.Fatal("worker is missing --once")
	}
}
