package audit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"
)

// Bridge owns the single stored policy callback and the one-time
// instrumentation of an embedded runtime.
//
// The runtime serializes execution of hosted code, so dispatch always runs
// on the thread that triggered the audited operation while that thread holds
// the runtime; the bridge adds no locking of its own on the dispatch path.
type Bridge struct {
	// runtime is the instrumented Lua state.
	runtime *lua.LState

	// callback is the stored policy decision point. At most one is active;
	// setting a new one releases the previous reference.
	callback Callback

	// registered transitions false->true at most once per bridge. The
	// runtime instrumentation cannot be removed once installed.
	registered bool

	// diag receives reports of suppressed callback failures.
	diag io.Writer

	// observers are notified after every dispatch.
	observers []Observer

	// terminated holds the first Termination an aborted dispatch carried,
	// so the launcher can translate it into the process exit code.
	terminated *Termination

	logger *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDiagnostics sets the stream that receives suppressed callback failure
// reports. Defaults to os.Stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(b *Bridge) { b.diag = w }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithObserver appends a dispatch observer. Observers see every dispatched
// event together with the verdict that was applied.
func WithObserver(fn Observer) Option {
	return func(b *Bridge) { b.observers = append(b.observers, fn) }
}

// New creates a bridge around the given runtime state. The runtime is not
// instrumented until the first SetCallback call.
func New(L *lua.LState, opts ...Option) *Bridge {
	b := &Bridge{
		runtime: L,
		diag:    os.Stderr,
		logger:  slog.Default().With("component", "audit.bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Runtime returns the runtime state this bridge instruments.
func (b *Bridge) Runtime() *lua.LState {
	return b.runtime
}

// Registered reports whether the runtime instrumentation is installed.
func (b *Bridge) Registered() bool {
	return b.registered
}

// SetCallback stores cb as the active policy callback, replacing any prior
// one. On the first-ever call it also instruments the runtime; the
// instrumentation is guarded by the registered flag and is irreversible for
// the lifetime of the state.
//
// Returns ErrCallbackNotCallable for a nil callback and a *RegistrationError
// if the instrumentation fails. A failed registration installs nothing: the
// previously stored callback (if any) stays active.
func (b *Bridge) SetCallback(cb Callback) error {
	if cb == nil {
		return ErrCallbackNotCallable
	}

	if !b.registered {
		if err := b.register(); err != nil {
			return err
		}
		b.registered = true
		b.logger.Debug("audit hook registered")
	}

	b.callback = cb
	return nil
}

// ClearCallback releases the stored callback. The runtime instrumentation
// remains installed but subsequent dispatches become no-ops.
func (b *Bridge) ClearCallback() {
	b.callback = nil
}

// Dispatch forwards an audited operation to the stored callback and decides
// whether it continues or aborts. It is invoked synchronously by the
// instrumented runtime for every audited operation.
func (b *Bridge) Dispatch(name string, args []lua.LValue) Verdict {
	if b.callback == nil {
		return Continue
	}

	// Event names must be representable as runtime strings. A name that
	// cannot be encoded is dropped rather than failed.
	if !utf8.ValidString(name) {
		return Continue
	}

	start := time.Now()
	verdict, err := b.invoke(name, args)

	var t Termination
	termErr := err != nil && errors.As(err, &t)
	switch {
	case verdict == Abort:
		// Deliberate termination signal.
	case termErr:
		// Terminating-class failure conveyed as an error value.
		verdict = Abort
	case err != nil:
		// Recoverable policy failure: report, suppress, continue.
		fmt.Fprintf(b.diag, "[callisto] audit callback error on %s: %v\n", name, err)
		b.logger.Warn("audit callback failed", "event", name, "error", err)
		verdict = Continue
	default:
		verdict = Continue
	}

	if verdict == Abort && termErr && b.terminated == nil {
		b.terminated = &t
	}

	elapsed := time.Since(start)
	for _, fn := range b.observers {
		fn(Event{Name: name, Args: args}, verdict, elapsed)
	}

	return verdict
}

// Terminated reports whether an aborted dispatch carried a Termination and
// returns the first one. The launcher uses it to turn a policy abort into
// the intended process exit code after the runtime unwinds.
func (b *Bridge) Terminated() (Termination, bool) {
	if b.terminated == nil {
		return Termination{}, false
	}
	return *b.terminated, true
}

// invoke calls the stored callback with panic containment. A panic carrying
// a Termination value aborts the operation; any other panic is converted to
// a recoverable error.
func (b *Bridge) invoke(name string, args []lua.LValue) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(Termination); ok {
				verdict, err = Abort, t
				return
			}
			verdict, err = Continue, fmt.Errorf("callback panic: %v", r)
		}
	}()

	return b.callback(name, args)
}
