// Package notifier turns notification batches into chat messages.
//
// A Notifier is configured once (handler kind, presentation, sink) and then
// handles batches: every record is decoded, rendered and dispatched in batch
// order, one outbound call per rendered message.
//
// # Results
//
// Handle gathers the outcome of every dispatch into a Result and returns the
// joined dispatch errors, so a batch fails when any dispatch failed. A record
// whose payload cannot be decoded stops the batch at that record with a
// *event.PayloadParseError; records before it stay dispatched.
//
// # Events
//
// When a bus is attached, each record outcome is published as a
// dispatch.sent, dispatch.failed or dispatch.skipped event. Publishing never
// blocks the batch.
//
// The Notifier keeps no memory between batches: handling the same batch
// twice sends everything twice.
package notifier
