package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// The version suffix leaves room for a future algorithm change.
const (
	DomainRuleset = "sce/ruleset/v1"
	DomainTrace   = "sce/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RulesetHash fingerprints a compiled ruleset. Two compilations of the same
// source with the same category table produce the same hash.
func RulesetHash(rs *Ruleset) (string, error) {
	canonical, err := MarshalCanonical(rs)
	if err != nil {
		return "", fmt.Errorf("RulesetHash: %w", err)
	}
	return hashWithDomain(DomainRuleset, canonical), nil
}

// TraceHash fingerprints an evolved word together with its trace.
// Replay compares these to prove a run is reproducible.
func TraceHash(output Word, trace []ChangeRecord) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"output": output,
		"trace":  trace,
	})
	if err != nil {
		return "", fmt.Errorf("TraceHash: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustRulesetHash is like RulesetHash but panics on error.
// Use only in tests or when the ruleset is known to be well formed.
func MustRulesetHash(rs *Ruleset) string {
	h, err := RulesetHash(rs)
	if err != nil {
		panic(err)
	}
	return h
}
