// Package retention enforces journal retention: age- and count-based
// pruning, optionally on a cron schedule.
package retention
