package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed ids. The version suffix leaves room
// for algorithm migration.
const (
	DomainScenario = "flowrt/scenario/v1"
	DomainEvent    = "flowrt/event/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScenarioHash computes the content hash of a scenario. Two scenarios with the
// same operators, steps and expectations hash the same regardless of name or
// description.
func ScenarioHash(s *Scenario) (string, error) {
	obj, err := s.canonicalObject()
	if err != nil {
		return "", fmt.Errorf("ScenarioHash: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ScenarioHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScenario, canonical), nil
}

// EventID computes the content-addressed id of a trace event. The id is
// stable across re-runs given the same flow token.
func EventID(flowToken string, seq int64, observer, kind, payload string) string {
	obj := Object{
		"flow_token": String(flowToken),
		"seq":        Int(seq),
		"observer":   String(observer),
		"kind":       String(kind),
		"payload":    String(payload),
	}
	// Cannot fail: every field is a string or int.
	canonical, _ := MarshalCanonical(obj)
	return hashWithDomain(DomainEvent, canonical)
}

// MustScenarioHash is like ScenarioHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScenarioHash(s *Scenario) string {
	h, err := ScenarioHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
