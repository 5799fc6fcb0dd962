package main

import (
	"articlesync/internal/syncqueue"
)

const (
	exitFailure            = 1
	exitInvalidInput       = 2
	exitStorageUnavailable = 3
	exitTransactionFailed  = 4
)

// exitStatus maps a command error to the process exit code and an optional
// hint printed after the error.
func exitStatus(err error) (int, string) {
	switch syncqueue.ErrorKind(err) {
	case syncqueue.KindValidation:
		return exitInvalidInput, ""
	case syncqueue.KindStorageUnavailable:
		return exitStorageUnavailable, "check that paths.state_dir is writable and run `articlesync health`"
	case syncqueue.KindTransactionFailed:
		return exitTransactionFailed, "no changes were applied; retry the command"
	default:
		return exitFailure, ""
	}
}
