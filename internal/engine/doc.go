// Package engine applies compiled sound-change rules to words.
//
// ARCHITECTURE:
//
// Rule application:
// Each rule makes one or more passes over the word. A pass is a small state
// machine (apply.go):
//
//	Scanning → Matching → ExceptionCheck → {Apply, Skip} → Advance → Scanning
//
// At each cursor position the branches are tried in order. The first
// branch whose target matches and whose environment holds is the site;
// an exception on that branch vetoes the site for the whole rule and the
// cursor moves past it. An application moves the cursor past the inserted
// replacement, so a rule never re-reads its own output within a pass.
//
// Persistent rules:
// @persist rules repeat passes until a pass rewrites nothing. The
// PassLimiter (passes.go) caps the number of passes. The CycleDetector
// (cycle.go) notices a pass that revisits an earlier form and derives the
// form the cap would stop at, so a cycle ends as a truncated run carrying
// a Cycle diagnostic. Neither is ever a silent stop.
//
// Ruleset driver:
// Engine.Apply runs the rules strictly in declaration order and records a
// ChangeRecord for each rule that altered the word. ApplyLexicon fans words
// out over an errgroup; words are independent, so parallelism never changes
// a result.
//
// DETERMINISM:
// Same ruleset, same input, same output and trace. No clocks, no
// randomness, no map iteration on the result path. Replay (replay.go)
// verifies this against a recorded run.
package engine
