package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleCreator    Role = "creator"
	RoleAdvertiser Role = "advertiser"
	RoleSystem     Role = "system"
)

type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionCounter Decision = "counter"
	DecisionReject  Decision = "reject"
)

func ParseDecision(raw string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionAccept:
		return DecisionAccept, true
	case DecisionCounter:
		return DecisionCounter, true
	case DecisionReject:
		return DecisionReject, true
	default:
		return "", false
	}
}

const FallbackDecisionReasoning = "failed to parse; requesting clarification"

// DecisionOutcome is one side's answer to the offer on the table. A nil
// CounterOffer on a counter means "keep the offer unchanged".
type DecisionOutcome struct {
	Decision     Decision
	Reasoning    string
	CounterOffer *TermSet
}

func FallbackDecision() DecisionOutcome {
	return DecisionOutcome{Decision: DecisionCounter, Reasoning: FallbackDecisionReasoning}
}

type decisionWire struct {
	Decision     string          `json:"decision"`
	Reasoning    string          `json:"reasoning"`
	CounterOffer json.RawMessage `json:"counter_offer"`
}

// DecodeDecision turns raw oracle output into a DecisionOutcome. Any text
// around the first JSON object is ignored. A counter-offer that does not
// validate is dropped, which leaves the current offer in place.
func DecodeDecision(content string) (DecisionOutcome, error) {
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return DecisionOutcome{}, fmt.Errorf("%w: no json object", ErrMalformedOracleResponse)
	}
	var wire decisionWire
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return DecisionOutcome{}, fmt.Errorf("%w: %v", ErrMalformedOracleResponse, err)
	}
	decision, ok := ParseDecision(wire.Decision)
	if !ok {
		return DecisionOutcome{}, fmt.Errorf("%w: unknown decision %q", ErrMalformedOracleResponse, wire.Decision)
	}
	out := DecisionOutcome{Decision: decision, Reasoning: strings.TrimSpace(wire.Reasoning)}
	if decision == DecisionCounter && len(wire.CounterOffer) > 0 && string(wire.CounterOffer) != "null" {
		var terms TermSet
		if err := json.Unmarshal(wire.CounterOffer, &terms); err == nil {
			terms = terms.Normalize()
			if terms.Validate() == nil {
				out.CounterOffer = &terms
			}
		}
	}
	return out, nil
}

// ExtractJSONObject returns the first balanced JSON object in text,
// tolerating markdown fences and prose around it.
func ExtractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			if escape {
				escape = false
				continue
			}
			if r == '\\' {
				escape = true
				continue
			}
			if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), true
			}
		}
	}
	return "", false
}
