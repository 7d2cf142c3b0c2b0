package bootstrap

// Mode is the enforcement posture selecting which policy entry point is
// installed. It is resolved once at launch and immutable afterwards.
type Mode string

const (
	// ModeRun enforces the policy: violations terminate the hosted program.
	ModeRun Mode = "run"

	// ModeForce logs violations but lets execution continue.
	ModeForce Mode = "force"

	// ModeReview prompts interactively for each violation.
	ModeReview Mode = "review"
)

// Entry point names, the literal contract with the policy package.
const (
	EntryRunHook    = "setup_run_hook"
	EntryForceHook  = "setup_force_hook"
	EntryReviewHook = "setup_review_hook"
)

// entryPoints maps the closed mode enum to its setup entry point name.
var entryPoints = map[Mode]string{
	ModeRun:    EntryRunHook,
	ModeForce:  EntryForceHook,
	ModeReview: EntryReviewHook,
}

// ParseMode resolves a mode string. Unrecognized or absent values default
// to ModeRun.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeForce:
		return ModeForce
	case ModeReview:
		return ModeReview
	default:
		return ModeRun
	}
}

// EntryPoint returns the setup entry point name for the mode.
func (m Mode) EntryPoint() string {
	if name, ok := entryPoints[m]; ok {
		return name
	}
	return EntryRunHook
}
