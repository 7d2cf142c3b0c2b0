// Package launcher boots the embedded runtime: it resolves settings from
// the environment, converts the process argument vector, configures the
// runtime's search paths and home directory, installs the audit policy
// through the bootstrap, and hands control to the top-level driver.
package launcher
