package store

import "github.com/roach88/sce/internal/ir"

// Run is the header of one recorded application of a ruleset.
type Run struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	Project       string `json:"project,omitempty"`
	RulesetHash   string `json:"ruleset_hash"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	WordCount     int    `json:"word_count"`
}

// WordRecord is one word of a run.
type WordRecord struct {
	Index       int               `json:"index"`
	Input       ir.Word           `json:"input"`
	Output      ir.Word           `json:"output"`
	TraceHash   string            `json:"trace_hash"`
	Diagnostics []ir.Diagnostic   `json:"diagnostics,omitempty"`
	Changes     []ir.ChangeRecord `json:"changes,omitempty"`
}
