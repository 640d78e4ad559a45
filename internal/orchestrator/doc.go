// Package orchestrator drives workflow instances through the stage pipeline.
//
// A Drive loop owns one instance at a time: it snapshots the instance, opens
// a stage attempt, runs the registered executor, and applies the outcome
// through the store's fenced writes. The loop never assumes exclusivity.
// When a competing worker moved the instance first, the resulting stale-state
// error is treated as "someone else has it" and the loop backs off without
// logging an error. Retryable failures wait out the policy backoff before the
// next attempt; terminal transitions end the loop.
//
// Dispatch runs on a bounded worker pool. Submitting past capacity blocks the
// caller, which is the backpressure contract for burst submissions.
package orchestrator
