// Package engine implements the permission engine consulted by the policy
// hooks for every audited runtime event.
//
// The engine reads a YAML config describing fine-grained permissions for
// file access, environment variables, command execution, and network hosts,
// and answers CheckPermission for each event. It also records review-mode
// approvals and can merge them back into the config file, and supports
// hot-reload of the config file via fsnotify.
//
// Unlisted events are allowed: the engine restricts only the operations it
// has rules for.
package engine
