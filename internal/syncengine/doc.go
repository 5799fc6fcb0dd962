// Package syncengine drives the sync queue's claim/deliver/commit cycle.
//
// Each cycle claims every pending record, groups the snapshot into batches by
// status key and flag, and hands each batch to a Sender. Articles whose batches
// all succeeded are committed; any article touched by a failed batch is
// released as a whole so every kind of it is retried next cycle. Delivery is
// therefore at-least-once and relies on the remote applying status values
// idempotently.
//
// Start releases claims left behind by a previous crash before the first cycle.
// Only one cycle runs at a time per Engine.
package syncengine
