// Package daemonctl launches, stops, and restarts the articlesync daemon from
// the CLI. The daemon is reached over its IPC socket; when it stops answering
// the pid file written by daemonrun is used to terminate the process.
package daemonctl
