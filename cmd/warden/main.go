// Warden runs Lua programs under a runtime-level audit policy.
//
// It boots an embedded Lua runtime, instruments its sensitive standard
// library operations, and routes every audited event to a policy decision
// point before it executes:
//   - Permission config with allow-lists for files, env vars, commands,
//     hosts, and module registries
//   - Three enforcement modes: run (block), force (log only), review
//     (interactive approval)
//   - Persistent audit journal with retention pruning
//   - Prometheus metrics for the audit pipeline
//
// Usage:
//
//	# Run a script under the default enforcement policy
//	warden run script.lua
//
//	# Log violations without blocking
//	warden run --force script.lua
//
//	# Approve operations interactively
//	warden run --review script.lua
//
//	# Evaluate an inline chunk
//	warden eval 'print(os.getenv("HOME"))'
//
//	# Write a default policy config
//	warden config create
//
//	# Inspect the audit journal
//	warden journal query --verdict abort
package main

import (
	// Publishes the policy setup entry points into the bootstrap registry.
	_ "warden-hq/callisto/pkg/policy/hooks"
)

func main() {
	Execute()
}
