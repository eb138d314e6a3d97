// Package store provides SQLite-backed run history for sce.
//
// A run records one application of a ruleset to a lexicon:
//   - Runs: ruleset fingerprint, engine version, word count
//   - Words: each input with its output and trace hash
//   - Changes: the change records of each word, in rule order
//
// # Ordering
//
//   - Runs are ordered by seq INTEGER (logical clock), NEVER timestamps
//   - Words by idx ASC; changes by word_idx ASC, ord ASC
//
// Reading a run back yields exactly what was written, so a replay can be
// compared word for word.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Words, sites, and diagnostics are stored as JSON arrays so symbol
// boundaries survive the round trip.
package store
