// Package notifybox provides a reliable notification delivery outbox with pluggable storage backends.
//
// Typical flow:
//  1. A business action calls Enqueuer.Enqueue with one logical event and the channels it fans out to.
//     Every channel gets its own record, inserted only if no record with the same dedupe key exists.
//  2. A scheduler (cron, the Scheduler type, or an immediate call after enqueue) invokes Dispatcher.Drain.
//  3. Drain claims a bounded batch of due records under a lease, calls the Sender once per record and
//     marks each record sent, re-arms it with exponential backoff, or dead-letters it.
//
// Storage implementations live in the mysql, gormstore and memstore packages.
package notifybox
