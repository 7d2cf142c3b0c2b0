// Package bootstrap wires the external policy package to the audit bridge
// exactly once per process.
//
// The bootstrap selects a setup entry point by enforcement mode, constructs
// a policy engine when a config path is available, and invokes the entry
// point. Entry points are published by the policy package into a registry
// under literal contract names:
//
//	run    -> "setup_run_hook"
//	force  -> "setup_force_hook"
//	review -> "setup_review_hook"
//
// A missing entry point is not an error: the hosted program runs
// unprotected rather than being blocked by an absent optional package.
package bootstrap
