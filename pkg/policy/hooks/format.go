package hooks

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"warden-hq/callisto/pkg/audit"
	"warden-hq/callisto/pkg/policy/engine"
)

// ANSI color codes for terminal output. The clear-line prefix keeps our
// messages from being overwritten by progress spinners in hosted code.
const (
	colorRed    = "\033[91m"
	colorOrange = "\033[93m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
	clearLine   = "\r\033[K"
)

// criticalEvents always render red in review mode.
var criticalEvents = map[string]bool{
	"os.execute":     true,
	"io.popen":       true,
	"os.system":      true,
	"os.exit":        true,
	"socket.connect": true,
	"load":           true,
	"loadstring":     true,
}

// formatEvent renders an audited event for humans.
func formatEvent(ev audit.Event) string {
	args := stringArgs(ev.Args)

	switch ev.Name {
	case "io.open":
		mode := "r"
		if len(args) > 1 && args[1] != "" {
			mode = args[1]
		}
		if len(args) > 0 {
			if strings.ContainsAny(mode, "wax+") {
				return fmt.Sprintf("write file %s (mode %s)", args[0], mode)
			}
			return fmt.Sprintf("read file %s", args[0])
		}
	case "io.lines", "dofile", "loadfile":
		if len(args) > 0 {
			return fmt.Sprintf("read file %s", args[0])
		}
	case "os.execute", "io.popen", "os.system":
		if len(args) > 0 {
			return fmt.Sprintf("execute command %q", args[0])
		}
	case "os.remove":
		if len(args) > 0 {
			return fmt.Sprintf("delete file %s", args[0])
		}
	case "os.rename":
		if len(args) > 1 {
			return fmt.Sprintf("rename %s -> %s", args[0], args[1])
		}
	case "os.getenv":
		if len(args) > 0 {
			return fmt.Sprintf("read env var %s", args[0])
		}
	case "os.setenv":
		if len(args) > 0 {
			return fmt.Sprintf("set env var %s", args[0])
		}
	case "socket.connect":
		if len(args) > 1 {
			return fmt.Sprintf("connect to %s:%s", args[0], args[1])
		}
		if len(args) > 0 {
			return fmt.Sprintf("connect to %s", args[0])
		}
	}
	return ev.String()
}

// eventColor escalates the prompt color by criticality: red for command
// execution, network and sensitive files, orange for writes, yellow
// otherwise.
func eventColor(ev audit.Event, eng *engine.Engine) string {
	if criticalEvents[ev.Name] {
		return colorRed
	}

	args := stringArgs(ev.Args)
	if ev.Name == "io.open" && len(args) > 0 {
		if eng != nil && eng.IsSensitivePath(args[0]) {
			return colorRed
		}
		if len(args) > 1 && strings.ContainsAny(args[1], "wax+") {
			return colorOrange
		}
	}
	if ev.Name == "os.getenv" && len(args) > 0 && eng != nil {
		if eng.ClassifyEnvVar(args[0]) == engine.EnvBlock {
			return colorRed
		}
	}
	return colorYellow
}

// stringArgs flattens runtime values into strings for the engine and for
// display. Non-string values render through their Lua string conversion.
func stringArgs(args []lua.LValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = lua.LVAsString(a)
	}
	return out
}

// renderArgs renders an argument list the way a Lua call site would look.
func renderArgs(args []lua.LValue) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Type() == lua.LTString {
			parts[i] = fmt.Sprintf("%q", lua.LVAsString(a))
		} else {
			parts[i] = lua.LVAsString(a)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// hostedStackTrace asks the runtime's debug library for a traceback of the
// hosted program at the current dispatch point.
func hostedStackTrace(L *lua.LState) string {
	if L == nil {
		return "(no runtime stack available)"
	}

	dbg := L.GetGlobal("debug")
	if dbg == lua.LNil {
		return "(debug library not available)"
	}
	traceback := L.GetField(dbg, "traceback")
	if traceback == lua.LNil {
		return "(debug.traceback not available)"
	}

	if err := L.CallByParam(lua.P{Fn: traceback, NRet: 1, Protect: true}); err != nil {
		return fmt.Sprintf("(traceback failed: %v)", err)
	}
	top := L.Get(-1)
	L.Pop(1)
	return lua.LVAsString(top)
}
