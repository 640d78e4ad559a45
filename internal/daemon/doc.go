// Package daemon coordinates the long-running caseflow engine process.
//
// It wires configuration, the workflow store, and the orchestrator into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon resumes interrupted work on startup, runs the periodic expiry
// and reclaim sweeper, and serves the HTTP API used by the CLI.
//
// Keep coordination logic here: stage semantics live in their respective
// packages while the daemon focuses on startup, shutdown, and high level
// supervision.
package daemon
