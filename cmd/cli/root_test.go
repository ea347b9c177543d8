package cli

import "testing"

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	want := map[string]bool{"session": false, "anchor": false, "consensus": false, "payout": false, "sync": false}
	for _, c := range RootCmd.Commands() {
		name := c.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered on the root command", name)
		}
	}
}

func TestSessionCommandHasRunAndStatus(t *testing.T) {
	names := map[string]bool{}
	for _, c := range SessionCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["run"] || !names["status"] {
		t.Fatalf("expected 'run' and 'status' subcommands under session, got %v", names)
	}
}

func TestAnchorCommandHasStatusVerifySweep(t *testing.T) {
	names := map[string]bool{}
	for _, c := range AnchorCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"status", "verify", "sweep"} {
		if !names[want] {
			t.Errorf("expected %q subcommand under anchor, got %v", want, names)
		}
	}
}

func TestConsensusCommandHasCreditsAndRunSlot(t *testing.T) {
	names := map[string]bool{}
	for _, c := range ConsensusCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["credits"] || !names["run-slot"] {
		t.Fatalf("expected 'credits' and 'run-slot' subcommands under consensus, got %v", names)
	}
}

func TestPayoutCommandHasSubmitAndProcess(t *testing.T) {
	names := map[string]bool{}
	for _, c := range PayoutCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["submit"] || !names["process"] {
		t.Fatalf("expected 'submit' and 'process' subcommands under payout, got %v", names)
	}
}

func TestSyncCommandHasOnce(t *testing.T) {
	names := map[string]bool{}
	for _, c := range SyncCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["once"] {
		t.Fatalf("expected 'once' subcommand under sync, got %v", names)
	}
}

func TestRootCmdDefaultsLogLevelToInfo(t *testing.T) {
	flag := RootCmd.PersistentFlags().Lookup("log-level")
	if flag == nil {
		t.Fatal("expected a 'log-level' persistent flag")
	}
	if flag.DefValue != "info" {
		t.Fatalf("expected default log level 'info', got %q", flag.DefValue)
	}
}
