// Package hooks provides the policy setup entry points installed by the
// bootstrap: enforcement (run), log-only (force), and interactive review.
//
// Importing this package publishes the entry points into the bootstrap
// registry under their contract names. Each entry point builds a policy
// callback around a permission engine and installs it on the audit bridge.
//
// All three callbacks carry a reentrancy flag: operations performed by the
// callback itself (config saves, prompts) are audited like any other code,
// and the flag keeps those nested events from recursing into the policy.
package hooks
