package audit

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// operation describes one audited runtime operation: where its function
// lives and the event name raised before it executes.
type operation struct {
	// module is the library table holding the function, or "" for a global.
	module string

	// fn is the function name within the module (or the global name).
	fn string

	// event is the audited event name passed to the policy callback.
	event string
}

// auditedOperations is the closed catalog of runtime operations the bridge
// intercepts. Operations absent from the hosted state (trimmed libraries)
// are skipped at registration time.
var auditedOperations = []operation{
	{module: "io", fn: "open", event: "io.open"},
	{module: "io", fn: "lines", event: "io.lines"},
	{module: "io", fn: "popen", event: "io.popen"},
	{module: "os", fn: "execute", event: "os.execute"},
	{module: "os", fn: "remove", event: "os.remove"},
	{module: "os", fn: "rename", event: "os.rename"},
	{module: "os", fn: "getenv", event: "os.getenv"},
	{module: "os", fn: "setenv", event: "os.setenv"},
	{module: "os", fn: "tmpname", event: "os.tmpname"},
	{module: "os", fn: "exit", event: "os.exit"},
	{module: "", fn: "dofile", event: "dofile"},
	{module: "", fn: "loadfile", event: "loadfile"},
	{module: "", fn: "load", event: "load"},
	{module: "", fn: "loadstring", event: "loadstring"},
	{module: "", fn: "require", event: "require"},
}

// register installs the dispatch-then-delegate wrappers over the audited
// operations. It runs at most once per bridge, from the first SetCallback.
func (b *Bridge) register() error {
	L := b.runtime
	if L == nil {
		return &RegistrationError{Cause: ErrRuntimeClosed}
	}

	wrapped := 0
	for _, op := range auditedOperations {
		target, err := b.resolveTarget(op)
		if err != nil {
			return err
		}
		if target == nil {
			// Library not opened in this state; nothing to intercept.
			continue
		}

		orig := L.GetField(target, op.fn)
		if _, ok := orig.(*lua.LFunction); !ok {
			continue
		}

		L.SetField(target, op.fn, L.NewFunction(b.wrap(op.event, orig)))
		wrapped++
	}

	if wrapped == 0 {
		return &RegistrationError{Cause: fmt.Errorf("no audited operations present in runtime")}
	}

	b.logger.Debug("runtime instrumented", "operations", wrapped)
	return nil
}

// resolveTarget finds the table an operation's function lives in: the
// globals table for bare globals, or the named library table.
func (b *Bridge) resolveTarget(op operation) (lua.LValue, error) {
	L := b.runtime
	if op.module == "" {
		return L.G.Global, nil
	}

	mod := L.GetGlobal(op.module)
	if mod == lua.LNil {
		return nil, nil
	}
	if _, ok := mod.(*lua.LTable); !ok {
		return nil, &RegistrationError{
			Operation: op.event,
			Cause:     fmt.Errorf("global %q is not a table", op.module),
		}
	}
	return mod, nil
}

// wrap builds the interception closure for one audited operation: dispatch
// first, then delegate to the original function with the same arguments.
func (b *Bridge) wrap(event string, orig lua.LValue) lua.LGFunction {
	return func(L *lua.LState) int {
		top := L.GetTop()
		args := make([]lua.LValue, top)
		for i := 1; i <= top; i++ {
			args[i-1] = L.Get(i)
		}

		if b.Dispatch(event, args) == Abort {
			L.RaiseError("%s: operation not permitted by audit policy", event)
			return 0
		}

		if err := L.CallByParam(lua.P{
			Fn:      orig,
			NRet:    lua.MultRet,
			Protect: true,
		}, args...); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}

		return L.GetTop() - top
	}
}
