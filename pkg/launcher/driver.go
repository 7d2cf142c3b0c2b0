package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	lua "github.com/yuin/gopher-lua"
)

// Invocation is the parsed launcher command line.
type Invocation struct {
	// Script is the program file to run; empty means no script.
	Script string

	// ScriptArgs are passed to the script through the arg table.
	ScriptArgs []string

	// Chunk is an inline chunk given with -e.
	Chunk string

	// Libs are modules to require before running, given with -l.
	Libs []string

	// Interactive forces the interactive loop (-i), also after a script.
	Interactive bool

	// ShowVersion prints the runtime version and exits (-v).
	ShowVersion bool
}

// ParseInvocation parses the launcher's own argument conventions:
// [-e chunk] [-l lib] [-i] [-v] [--] [script [args...]].
func ParseInvocation(args []string) (*Invocation, error) {
	inv := &Invocation{}

	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "-e":
			if i+1 >= len(args) {
				return nil, errors.New("-e requires a chunk argument")
			}
			inv.Chunk = args[i+1]
			i += 2
		case a == "-l":
			if i+1 >= len(args) {
				return nil, errors.New("-l requires a module name")
			}
			inv.Libs = append(inv.Libs, args[i+1])
			i += 2
		case a == "-i":
			inv.Interactive = true
			i++
		case a == "-v":
			inv.ShowVersion = true
			i++
		case a == "--":
			i++
			if i < len(args) {
				inv.Script = args[i]
				inv.ScriptArgs = args[i+1:]
			}
			return inv, nil
		case strings.HasPrefix(a, "-") && a != "-":
			return nil, fmt.Errorf("unrecognized option %q", a)
		default:
			inv.Script = a
			inv.ScriptArgs = args[i+1:]
			return inv, nil
		}
	}
	return inv, nil
}

// Driver executes the parsed invocation against an initialized runtime.
type Driver struct {
	state  *lua.LState
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewDriver creates a driver over the given runtime state.
func NewDriver(L *lua.LState) *Driver {
	return &Driver{
		state:  L,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: slog.Default().With("component", "launcher.driver"),
	}
}

// Run executes the invocation and returns the process exit code: 0 on
// success, 1 when a chunk or script fails. The version banner prints
// first and does not suppress the rest of the invocation.
func (d *Driver) Run(inv *Invocation) int {
	if inv.ShowVersion {
		fmt.Fprintln(d.stdout, versionLine())
	}

	for _, lib := range inv.Libs {
		if err := d.state.DoString(fmt.Sprintf("require(%q)", lib)); err != nil {
			fmt.Fprintln(d.stderr, err)
			return 1
		}
	}

	if inv.Chunk != "" {
		if err := d.state.DoString(inv.Chunk); err != nil {
			fmt.Fprintln(d.stderr, err)
			return 1
		}
	}

	if inv.Script != "" {
		if err := d.state.DoFile(inv.Script); err != nil {
			fmt.Fprintln(d.stderr, err)
			return 1
		}
	}

	if inv.Interactive || (inv.Script == "" && inv.Chunk == "" && !inv.ShowVersion) {
		return d.repl()
	}
	return 0
}

// repl runs the interactive loop until EOF or interrupt.
func (d *Driver) repl() int {
	fmt.Fprintln(d.stdout, versionLine())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "> ",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintln(d.stderr, err)
		return 1
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return 0
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		d.evalLine(line)
	}
}

// evalLine evaluates one interactive line. Expressions are tried with an
// implicit return first so their values print, statements run as-is.
func (d *Driver) evalLine(line string) {
	L := d.state
	top := L.GetTop()
	defer L.SetTop(top)

	fn, err := L.LoadString("return " + line)
	if err != nil {
		if fn, err = L.LoadString(line); err != nil {
			fmt.Fprintln(d.stderr, err)
			return
		}
	}

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		fmt.Fprintln(d.stderr, err)
		return
	}

	nret := L.GetTop() - top
	for i := 0; i < nret; i++ {
		fmt.Fprintln(d.stdout, L.Get(top+1+i).String())
	}
}

func versionLine() string {
	return fmt.Sprintf("Callisto (%s)", lua.LuaVersion)
}
