// Package preflight provides readiness checks for the filesystem paths and
// the remote sync service that articlesync depends on.
//
// The CLI status command renders these results; each check is gated by its
// config toggle so a disabled sync engine skips the remote probe.
package preflight
