// Package store provides SQLite-backed run history for the harness.
//
// Every finished batch (test or regeneration) can be recorded as one row in
// runs plus one row per example in example_reports, keyed by
// (run_id, idx) so that manifest order survives storage.
//
// # Critical Patterns
//
// Idempotent recording:
//   - runs.id is the batch RunID; recording the same run twice is a no-op
//
// Deterministic reads:
//   - Runs are listed newest first: ORDER BY started_at DESC, id DESC
//   - Examples are listed in manifest order: ORDER BY idx ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
