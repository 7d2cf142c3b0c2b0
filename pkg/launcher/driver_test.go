package launcher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func newTestDriver(t *testing.T) (*Driver, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)

	d := NewDriver(L)
	var out, errOut bytes.Buffer
	d.stdout = &out
	d.stderr = &errOut
	return d, &out, &errOut
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDriver_RunScript(t *testing.T) {
	d, _, _ := newTestDriver(t)
	path := writeScript(t, `result = 6 * 7`)

	if code := d.Run(&Invocation{Script: path}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := d.state.GetGlobal("result").String(); got != "42" {
		t.Errorf("result = %q, want 42", got)
	}
}

func TestDriver_RunScriptError(t *testing.T) {
	d, _, errOut := newTestDriver(t)
	path := writeScript(t, `error("boom")`)

	if code := d.Run(&Invocation{Script: path}); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("stderr missing error: %q", errOut.String())
	}
}

func TestDriver_InlineChunk(t *testing.T) {
	d, _, _ := newTestDriver(t)

	if code := d.Run(&Invocation{Chunk: `answer = "yes"`}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := d.state.GetGlobal("answer").String(); got != "yes" {
		t.Errorf("answer = %q", got)
	}
}

func TestDriver_ChunkBeforeScript(t *testing.T) {
	d, _, _ := newTestDriver(t)
	path := writeScript(t, `combined = prefix .. "-script"`)

	inv := &Invocation{Chunk: `prefix = "chunk"`, Script: path}
	if code := d.Run(inv); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := d.state.GetGlobal("combined").String(); got != "chunk-script" {
		t.Errorf("combined = %q", got)
	}
}

func TestDriver_Version(t *testing.T) {
	d, out, _ := newTestDriver(t)

	if code := d.Run(&Invocation{ShowVersion: true}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "Callisto") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestDriver_VersionWithScriptStillRuns(t *testing.T) {
	d, out, _ := newTestDriver(t)
	path := writeScript(t, `ran = true`)

	if code := d.Run(&Invocation{ShowVersion: true, Script: path}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "Callisto") {
		t.Errorf("banner missing: %q", out.String())
	}
	if d.state.GetGlobal("ran") != lua.LTrue {
		t.Error("script did not run after the version banner")
	}
}

func TestDriver_EvalLine(t *testing.T) {
	d, out, errOut := newTestDriver(t)

	d.evalLine("1 + 2")
	if !strings.Contains(out.String(), "3") {
		t.Errorf("expression result not printed: %q", out.String())
	}

	out.Reset()
	d.evalLine(`x = "stored"`)
	if got := d.state.GetGlobal("x").String(); got != "stored" {
		t.Errorf("statement did not run: x = %q", got)
	}

	d.evalLine("this is not lua")
	if errOut.Len() == 0 {
		t.Error("syntax error not reported")
	}
}
