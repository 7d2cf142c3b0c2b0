package hooks

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	lua "github.com/yuin/gopher-lua"

	"warden-hq/callisto/pkg/audit"
	"warden-hq/callisto/pkg/bootstrap"
	"warden-hq/callisto/pkg/policy/engine"
)

// Exit codes carried on the Termination when a policy decision ends the
// run. The launcher translates them into the process exit status once the
// runtime has unwound and the journal has drained.
const (
	// exitCodeViolation is used when run mode blocks an operation.
	exitCodeViolation = 78

	// exitCodeDenied is used when the user denies an operation in review.
	exitCodeDenied = 1

	// exitCodeInterrupt is used when a review prompt is interrupted.
	exitCodeInterrupt = 130
)

func init() {
	bootstrap.Register(bootstrap.EntryRunHook, SetupRunHook)
	bootstrap.Register(bootstrap.EntryForceHook, SetupForceHook)
	bootstrap.Register(bootstrap.EntryReviewHook, SetupReviewHook)
}

// hook is the state shared by one installed policy callback.
type hook struct {
	bridge *audit.Bridge
	eng    *engine.Engine
	out    io.Writer
	logger *slog.Logger

	// inHook suppresses auditing of operations the hook itself performs
	// (config saves, prompts). Dispatch runs on the runtime's execution
	// thread, so a plain flag suffices.
	inHook bool

	// approved caches review approvals so the same operation is asked
	// about once per session.
	approved map[string]bool
}

func newHook(bridge *audit.Bridge, eng *engine.Engine, mode string) (*hook, error) {
	if eng == nil {
		var err error
		eng, err = engine.New("")
		if err != nil {
			return nil, err
		}
	}
	return &hook{
		bridge:   bridge,
		eng:      eng,
		out:      os.Stderr,
		logger:   slog.Default().With("component", "policy.hooks", "mode", mode),
		approved: make(map[string]bool),
	}, nil
}

// SetupRunHook installs the enforcing callback: the first disallowed
// operation is reported and the process exits with code 78.
func SetupRunHook(bridge *audit.Bridge, eng *engine.Engine) error {
	h, err := newHook(bridge, eng, "run")
	if err != nil {
		return err
	}
	return bridge.SetCallback(h.guard(h.block))
}

// SetupForceHook installs the log-only callback: disallowed operations
// are reported and allowed to proceed.
func SetupForceHook(bridge *audit.Bridge, eng *engine.Engine) error {
	h, err := newHook(bridge, eng, "force")
	if err != nil {
		return err
	}
	return bridge.SetCallback(h.guard(h.warn))
}

// SetupReviewHook installs the interactive callback: disallowed
// operations are put to the user, and approvals are persisted into the
// policy config.
func SetupReviewHook(bridge *audit.Bridge, eng *engine.Engine) error {
	h, err := newHook(bridge, eng, "review")
	if err != nil {
		return err
	}
	return bridge.SetCallback(h.guard(h.review))
}

// guard wraps a violation handler into the full policy callback:
// reentrancy suppression, env read classification, then the permission
// check. Only disallowed operations reach the handler.
func (h *hook) guard(onViolation func(ev audit.Event) (audit.Verdict, error)) audit.Callback {
	return func(name string, args []lua.LValue) (audit.Verdict, error) {
		if h.inHook {
			return audit.Continue, nil
		}
		h.inHook = true
		defer func() { h.inHook = false }()

		strs := stringArgs(args)
		ev := audit.Event{Name: name, Args: args}

		if name == "os.getenv" && len(strs) > 0 {
			switch h.eng.ClassifyEnvVar(strs[0]) {
			case engine.EnvSilent:
				return audit.Continue, nil
			case engine.EnvInfo:
				h.logger.Debug("env var read", "name", strs[0])
				return audit.Continue, nil
			case engine.EnvBlock:
				// Credential-looking variable, not explicitly allowed.
				return onViolation(ev)
			}
		}

		if h.eng.CheckPermission(name, strs) {
			return audit.Continue, nil
		}
		return onViolation(ev)
	}
}

func (h *hook) block(ev audit.Event) (audit.Verdict, error) {
	fmt.Fprintf(h.out, "%s%sblocked: %s%s\n", clearLine, colorRed, formatEvent(ev), colorReset)
	fmt.Fprintln(h.out, hostedStackTrace(h.bridge.Runtime()))
	h.logger.Error("operation blocked", "event", ev.Name)
	return audit.Abort, audit.Termination{Code: exitCodeViolation, Reason: "operation not permitted: " + ev.Name}
}

func (h *hook) warn(ev audit.Event) (audit.Verdict, error) {
	fmt.Fprintf(h.out, "%s%swould block: %s%s\n", clearLine, colorYellow, formatEvent(ev), colorReset)
	h.logger.Warn("operation would be blocked", "event", ev.Name)
	return audit.Continue, nil
}

func (h *hook) review(ev audit.Event) (audit.Verdict, error) {
	rendered := renderArgs(ev.Args)
	key := ev.Name + rendered
	if h.approved[key] {
		return audit.Continue, nil
	}

	question := fmt.Sprintf("%s%sallow %s?%s [Y/n/i] ",
		clearLine, eventColor(ev, h.eng), formatEvent(ev), colorReset)

	for {
		ans, err := promptFn(question)
		if err != nil {
			h.logger.Warn("review prompt unavailable", "error", err)
			ans = answerInterrupt
		}

		switch ans {
		case answerYes:
			h.approved[key] = true
			h.eng.RecordDecision(ev.Name, rendered, true, decisionDetails(ev))
			if err := h.eng.SaveDecisions(); err != nil {
				h.logger.Warn("could not persist approval", "error", err)
			}
			return audit.Continue, nil

		case answerNo:
			h.eng.RecordDecision(ev.Name, rendered, false, decisionDetails(ev))
			h.saveDecisions()
			return audit.Abort, audit.Termination{Code: exitCodeDenied, Reason: "operation denied: " + ev.Name}

		case answerInspect:
			fmt.Fprintln(h.out, hostedStackTrace(h.bridge.Runtime()))

		case answerInterrupt:
			h.saveDecisions()
			return audit.Abort, audit.Termination{Code: exitCodeInterrupt, Reason: "review interrupted"}
		}
	}
}

// saveDecisions flushes recorded decisions before a terminating answer, so
// approvals already given survive a denial or an interrupt.
func (h *hook) saveDecisions() {
	if err := h.eng.SaveDecisions(); err != nil {
		h.logger.Warn("could not persist decisions", "error", err)
	}
}

// decisionDetails extracts the fields the engine needs to merge an
// approval back into the config.
func decisionDetails(ev audit.Event) map[string]string {
	args := stringArgs(ev.Args)
	d := make(map[string]string)
	switch ev.Name {
	case "io.open", "io.lines", "dofile", "loadfile":
		if len(args) > 0 {
			d["path"] = args[0]
		}
		if len(args) > 1 {
			d["mode"] = args[1]
		}
	case "os.execute", "io.popen", "os.system":
		if len(args) > 0 {
			d["command"] = engine.NormalizeCommand(args[0])
		}
	case "os.setenv", "os.getenv":
		if len(args) > 0 {
			d["key"] = args[0]
		}
	case "socket.connect":
		if len(args) > 0 {
			d["host"] = args[0]
		}
	}
	return d
}
