// Package audit provides the bridge between the embedded Lua runtime and a
// policy decision point.
//
// The bridge owns a single process-wide policy callback and the one-time
// instrumentation of the runtime's sensitive standard library operations.
// Every audited operation is forwarded to the stored callback before it
// executes; the callback's verdict decides whether the operation continues
// or is refused.
//
// # Lifecycle
//
//	L := lua.NewState()
//	bridge := audit.New(L)
//	err := bridge.SetCallback(func(name string, args []lua.LValue) (audit.Verdict, error) {
//	    if name == "os.execute" {
//	        return audit.Abort, nil
//	    }
//	    return audit.Continue, nil
//	})
//
// The first SetCallback call instruments the runtime; the instrumentation is
// irreversible for the lifetime of the state. Replacing the callback does not
// re-instrument, and ClearCallback leaves the instrumentation installed but
// turns dispatch into a no-op.
//
// # Failure posture
//
// A callback that returns an error, or panics with anything other than a
// Termination value, is reported to the diagnostic stream and the audited
// operation continues. Aborts are reserved for deliberate verdicts and
// termination signals: a buggy policy must never crash the hosted program.
package audit
