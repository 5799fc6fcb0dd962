// Package ipc exposes the articlesync daemon over JSON-RPC on a Unix socket.
//
// The server registers the "ArticleSync" service and forwards each call to the
// daemon; the client offers typed wrappers used by the CLI. Requests and
// responses are plain structs so the JSON codec stays stable across versions.
package ipc
