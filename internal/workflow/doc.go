// Package workflow persists benefit-application workflow instances in SQLite
// and defines the state machine that drives them through the processing
// pipeline.
//
// The package is the single source of truth for workflow semantics: the fixed
// stage order, the pure transition function mapping (stage, outcome, attempt)
// to advance/retry/terminate, the retry backoff curve, progress percentages,
// and history replay. The Store layers durable persistence on top with an
// optimistic compare-and-update discipline: every stage attempt is fenced by
// the instance's expected current stage plus a unique (instance, stage,
// attempt) index, so concurrent writers racing to advance the same instance
// resolve to exactly one winner without locks.
//
// Stage records are appended when an attempt starts and completed when it
// finishes; a record without an outcome marks an attempt that was interrupted
// mid-flight and is eligible for reclaim after a timeout. Instance fields such
// as current stage and progress are always derivable by replaying the record
// history through the transition table.
package workflow
