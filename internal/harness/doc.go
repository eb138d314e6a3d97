// Package harness runs sound-change scenarios as executable tests.
//
// A scenario names a ruleset, the words to evolve, and what must come out.
// The harness compiles the rules, evolves every word through the real
// engine, records the run in a private in-memory store, and checks
// expected outputs, assertions, and (optionally) a golden trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: intervocalic_voicing
//	description: "Voiceless stops voice between vowels"
//	graphs: [th]
//	categories:
//	  P: [p, t, k]
//	  B: [b, d, g]
//	  V: [a, e, i, o, u]
//	rules: |
//	  [P] > [B] / [V]_[V]
//	words:
//	  - input: apata
//	    expect: abada
//	max_passes: 50
//	disabled_optional: [loose]
//	assertions:
//	  - type: trace_contains
//	    word: apata
//	    rule: 0
//	  - type: final_state
//	    table: words
//	    where: { idx: 0 }
//	    expect: { output: [a, b, a, d, a] }
//
// # Assertion Types
//
//   - trace_contains: the rule changed the word
//   - trace_order: the rules changed the word in this order
//   - trace_count: the rule changed exactly N words
//   - diagnostic: the word raised a diagnostic code
//   - final_state: a row of the recorded run (runs, words, changes)
//     holds the expected column values
//
// # Deterministic Testing
//
// The recorded run uses the scenario name as its ID and a deterministic
// clock for its sequence number, so traces and stored rows are identical
// across runs. Golden files hold the canonical JSON of the word traces.
package harness
