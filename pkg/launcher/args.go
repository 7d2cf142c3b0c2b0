package launcher

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ErrArgConversion indicates the process argument vector cannot be
// represented as runtime strings.
var ErrArgConversion = errors.New("argument vector not convertible")

// ConvertArgs validates the argument vector for the runtime. Lua strings
// may carry arbitrary bytes, but NUL-containing arguments cannot survive
// the C-string boundary of os interfaces and are rejected up front.
func ConvertArgs(argv []string) ([]string, error) {
	out := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsRune(a, 0) {
			return nil, fmt.Errorf("%w: argument %d contains a NUL byte", ErrArgConversion, i)
		}
		out[i] = a
	}
	return out, nil
}

// setArgTable installs the conventional global arg table: the script name
// at index 0, its arguments at 1..n, and the interpreter path at -1.
func setArgTable(L *lua.LState, exe, script string, scriptArgs []string) {
	t := L.NewTable()
	t.RawSetInt(-1, lua.LString(exe))
	t.RawSetInt(0, lua.LString(script))
	for i, a := range scriptArgs {
		t.RawSetInt(i+1, lua.LString(a))
	}
	L.SetGlobal("arg", t)
}
