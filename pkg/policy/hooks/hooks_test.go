package hooks

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"warden-hq/callisto/pkg/audit"
	"warden-hq/callisto/pkg/bootstrap"
	"warden-hq/callisto/pkg/policy/engine"
)

// newTestHook builds a hook over a fresh runtime and an engine backed by
// the given config document. Output goes to the returned buffer.
func newTestHook(t *testing.T, mode, configYAML string) (*hook, *audit.Bridge, *bytes.Buffer) {
	t.Helper()

	workdir := t.TempDir()
	configPath := filepath.Join(workdir, engine.DefaultConfigName)
	if configYAML != "" {
		if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := engine.New(configPath, engine.WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	L := lua.NewState()
	t.Cleanup(L.Close)
	bridge := audit.New(L)

	h, err := newHook(bridge, eng, mode)
	if err != nil {
		t.Fatalf("newHook: %v", err)
	}

	var buf bytes.Buffer
	h.out = &buf
	return h, bridge, &buf
}

// stubPrompt replaces the review prompt with a scripted answer sequence
// and returns a counter of prompts issued.
func stubPrompt(t *testing.T, answers ...answer) *int {
	t.Helper()
	count := 0
	orig := promptFn
	promptFn = func(string) (answer, error) {
		if count >= len(answers) {
			t.Fatal("unexpected extra prompt")
		}
		a := answers[count]
		count++
		return a, nil
	}
	t.Cleanup(func() { promptFn = orig })
	return &count
}

func execArgs(command string) []lua.LValue {
	return []lua.LValue{lua.LString(command)}
}

// terminationCode extracts the exit code the bridge recorded, failing the
// test when no termination was captured.
func terminationCode(t *testing.T, bridge *audit.Bridge) int {
	t.Helper()
	term, ok := bridge.Terminated()
	if !ok {
		t.Fatal("bridge recorded no termination")
	}
	return term.Code
}

func TestRunHook_BlockedOperationTerminates(t *testing.T) {
	h, bridge, buf := newTestHook(t, "run", "")

	if err := bridge.SetCallback(h.guard(h.block)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("rm -rf /")); v != audit.Abort {
		t.Errorf("Dispatch = %q, want %q", v, audit.Abort)
	}
	if code := terminationCode(t, bridge); code != exitCodeViolation {
		t.Errorf("termination code = %d, want %d", code, exitCodeViolation)
	}
	if !strings.Contains(buf.String(), "blocked") {
		t.Errorf("output missing block report: %q", buf.String())
	}
}

func TestRunHook_PermittedOperationContinues(t *testing.T) {
	h, bridge, _ := newTestHook(t, "run", "allow_system_commands: [\"git status\"]\n")

	if err := bridge.SetCallback(h.guard(h.block)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("git status")); v != audit.Continue {
		t.Errorf("Dispatch = %q, want %q", v, audit.Continue)
	}
	if _, ok := bridge.Terminated(); ok {
		t.Error("permitted operation must not record a termination")
	}
}

func TestForceHook_ReportsAndContinues(t *testing.T) {
	h, bridge, buf := newTestHook(t, "force", "")

	if err := bridge.SetCallback(h.guard(h.warn)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("rm -rf /")); v != audit.Continue {
		t.Errorf("Dispatch = %q, want %q", v, audit.Continue)
	}
	if _, ok := bridge.Terminated(); ok {
		t.Error("force mode must never terminate")
	}
	if !strings.Contains(buf.String(), "would block") {
		t.Errorf("output missing warning: %q", buf.String())
	}
}

func TestReviewHook_ApprovalPersistsAndCaches(t *testing.T) {
	h, bridge, _ := newTestHook(t, "review", "")
	prompts := stubPrompt(t, answerYes)

	if err := bridge.SetCallback(h.guard(h.review)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("make test")); v != audit.Continue {
		t.Errorf("first Dispatch = %q, want %q", v, audit.Continue)
	}
	if v := bridge.Dispatch("os.execute", execArgs("make test")); v != audit.Continue {
		t.Errorf("second Dispatch = %q, want %q", v, audit.Continue)
	}
	if *prompts != 1 {
		t.Errorf("prompt count = %d, want 1 (session cache)", *prompts)
	}

	reloaded, err := engine.New(h.eng.ConfigPath())
	if err != nil {
		t.Fatalf("engine.New (reload): %v", err)
	}
	found := false
	for _, cmd := range reloaded.Config().AllowSystemCommands {
		if cmd == "make test" {
			found = true
		}
	}
	if !found {
		t.Error("approved command not persisted to config")
	}
}

func TestReviewHook_DenialTerminates(t *testing.T) {
	h, bridge, _ := newTestHook(t, "review", "")
	stubPrompt(t, answerNo)

	if err := bridge.SetCallback(h.guard(h.review)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("rm -rf /")); v != audit.Abort {
		t.Errorf("Dispatch = %q, want %q", v, audit.Abort)
	}
	if code := terminationCode(t, bridge); code != exitCodeDenied {
		t.Errorf("termination code = %d, want %d", code, exitCodeDenied)
	}
}

func TestReviewHook_InterruptTerminates(t *testing.T) {
	h, bridge, _ := newTestHook(t, "review", "")
	stubPrompt(t, answerInterrupt)

	if err := bridge.SetCallback(h.guard(h.review)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("sleep 1")); v != audit.Abort {
		t.Errorf("Dispatch = %q, want %q", v, audit.Abort)
	}
	if code := terminationCode(t, bridge); code != exitCodeInterrupt {
		t.Errorf("termination code = %d, want %d", code, exitCodeInterrupt)
	}
}

func TestReviewHook_InspectThenApprove(t *testing.T) {
	h, bridge, buf := newTestHook(t, "review", "")
	prompts := stubPrompt(t, answerInspect, answerYes)

	if err := bridge.SetCallback(h.guard(h.review)); err != nil {
		t.Fatalf("SetCallback: %v", err)
	}

	if v := bridge.Dispatch("os.execute", execArgs("make test")); v != audit.Continue {
		t.Errorf("Dispatch = %q, want %q", v, audit.Continue)
	}
	if *prompts != 2 {
		t.Errorf("prompt count = %d, want 2 (inspect re-asks)", *prompts)
	}
	if buf.Len() == 0 {
		t.Error("inspect should print a stack trace")
	}
}

// TestGuard_Reentrancy tests that operations performed while the hook is
// already active bypass the policy.
func TestGuard_Reentrancy(t *testing.T) {
	h, _, _ := newTestHook(t, "run", "")

	cb := h.guard(h.block)
	h.inHook = true

	v, err := cb("os.execute", execArgs("rm -rf /"))
	if err != nil || v != audit.Continue {
		t.Errorf("nested dispatch = (%q, %v), want (%q, nil)", v, err, audit.Continue)
	}
}

// TestGuard_EnvReads tests the three-way env read handling: harmless reads
// pass silently, credential-looking reads hit the policy.
func TestGuard_EnvReads(t *testing.T) {
	h, _, _ := newTestHook(t, "run", "allow_env_var_reads: [LANG]\n")
	cb := h.guard(h.block)

	for _, name := range []string{"LANG", "HOME"} {
		v, err := cb("os.getenv", []lua.LValue{lua.LString(name)})
		if err != nil || v != audit.Continue {
			t.Errorf("getenv %s = (%q, %v), want continue", name, v, err)
		}
	}

	v, err := cb("os.getenv", []lua.LValue{lua.LString("GITHUB_TOKEN")})
	if v != audit.Abort {
		t.Errorf("getenv GITHUB_TOKEN = %q, want %q", v, audit.Abort)
	}
	var term audit.Termination
	if !errors.As(err, &term) || term.Code != exitCodeViolation {
		t.Errorf("blocked read error = %v, want termination with code %d", err, exitCodeViolation)
	}
}

// TestEntryPointsRegistered tests that importing this package publishes
// all three entry points into the bootstrap registry.
func TestEntryPointsRegistered(t *testing.T) {
	workdir := t.TempDir()
	configPath := filepath.Join(workdir, engine.DefaultConfigName)

	L := lua.NewState()
	t.Cleanup(L.Close)
	bridge := audit.New(L)

	bs := bootstrap.New(nil)
	if err := bs.Install(bridge, bootstrap.ModeForce, configPath); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !bs.Installed() {
		t.Error("force entry point should have been found and run")
	}
	if !bridge.Registered() {
		t.Error("installing a hook must instrument the runtime")
	}
}
