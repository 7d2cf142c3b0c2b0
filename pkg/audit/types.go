package audit

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Verdict is the outcome of dispatching an audited operation to the policy
// callback.
type Verdict string

const (
	// Continue lets the audited operation proceed.
	Continue Verdict = "continue"

	// Abort refuses the audited operation. The hosted program sees a
	// runtime error at the call site.
	Abort Verdict = "abort"
)

// Callback is the policy decision point contract. It receives the audited
// event name and the operation's arguments as raw runtime values.
//
// Returning (Continue, nil) lets the operation proceed. Returning Abort
// refuses it. A non-nil error is a recoverable policy failure: it is
// reported and the operation continues.
type Callback func(name string, args []lua.LValue) (Verdict, error)

// Event describes a single audited operation. Events are constructed per
// dispatch and not retained afterwards.
type Event struct {
	// Name is the audited event name, e.g. "io.open" or "os.execute".
	Name string

	// Args holds the operation's arguments in call order.
	Args []lua.LValue
}

// String renders the event in "name(arg, ...)" form for diagnostics.
func (e Event) String() string {
	out := e.Name + "("
	for i, a := range e.Args {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", lua.LVAsString(a))
	}
	return out + ")"
}

// Observer is notified after every dispatch with the event, the verdict
// that was applied, and how long the dispatch took including the policy
// callback. Observers must not block; they are invoked synchronously on
// the runtime's execution thread.
type Observer func(ev Event, v Verdict, d time.Duration)

// Termination is the terminating-class signal. A callback (or code it calls)
// may panic with a Termination value to abort the in-flight audited
// operation; any other panic is treated as a recoverable policy failure.
type Termination struct {
	// Code is the process exit status the policy layer intends. It is
	// carried for diagnostics; the bridge itself never exits the process.
	Code int

	// Reason describes why the operation was aborted.
	Reason string
}

// Error implements the error interface so a Termination can also travel as
// an error value through the callback contract.
func (t Termination) Error() string {
	if t.Reason != "" {
		return fmt.Sprintf("terminated: %s (code %d)", t.Reason, t.Code)
	}
	return fmt.Sprintf("terminated (code %d)", t.Code)
}
