// Command articlesync is the CLI for the article status sync daemon.
//
// The daemon subcommand runs the sync engine in the foreground. Every other
// subcommand talks to a running daemon over its IPC socket and, when no daemon
// is listening, falls back to opening the pending status database directly.
package main
