package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	BrandSafetyThreshold = 60.0
	MaxTier              = 3

	fallbackScore = 70.0
)

type AuditResult struct {
	ContentScore     float64            `json:"content_score"`
	TierAchieved     int                `json:"tier_achieved"`
	BrandSafe        bool               `json:"brand_safety"`
	BrandSafetyScore float64            `json:"brand_safety_score"`
	DeliverablesMet  bool               `json:"deliverables_met"`
	Reasoning        string             `json:"reasoning"`
	DetailedScores   map[string]float64 `json:"detailed_scores"`
	Fallback         bool               `json:"fallback,omitempty"`
}

func (a AuditResult) Clone() AuditResult {
	out := a
	if a.DetailedScores != nil {
		out.DetailedScores = make(map[string]float64, len(a.DetailedScores))
		for k, v := range a.DetailedScores {
			out.DetailedScores[k] = v
		}
	}
	return out
}

// FallbackAudit is the neutral result used when the audit response cannot
// be interpreted. It passes the brand-safety gate at tier 1.
func FallbackAudit() AuditResult {
	return AuditResult{
		ContentScore:     fallbackScore,
		TierAchieved:     1,
		BrandSafe:        true,
		BrandSafetyScore: fallbackScore,
		DeliverablesMet:  true,
		Reasoning:        "audit response could not be parsed; using neutral fallback scores",
		DetailedScores: map[string]float64{
			"brand_safety": fallbackScore,
			"quality":      fallbackScore,
			"authenticity": fallbackScore,
		},
		Fallback: true,
	}
}

type auditWire struct {
	BrandSafetyScore  *float64 `json:"brand_safety_score"`
	DeliverablesMet   *bool    `json:"deliverables_met"`
	QualityScore      *float64 `json:"quality_score"`
	AuthenticityScore *float64 `json:"authenticity_score"`
	OverallScore      *float64 `json:"overall_score"`
	TierAchieved      *float64 `json:"tier_achieved"`
	Reasoning         string   `json:"reasoning"`
}

// DecodeAudit maps raw audit output onto an AuditResult. Missing fields take
// conservative defaults; a missing brand-safety score fails the gate.
func DecodeAudit(content string) (AuditResult, error) {
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return AuditResult{}, fmt.Errorf("%w: no json object", ErrMalformedOracleResponse)
	}
	var wire auditWire
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return AuditResult{}, fmt.Errorf("%w: %v", ErrMalformedOracleResponse, err)
	}

	brandSafety := clampScore(valueOr(wire.BrandSafetyScore, 0))
	overall := clampScore(valueOr(wire.OverallScore, fallbackScore))
	tier := clampTier(valueOr(wire.TierAchieved, 1))
	deliverables := true
	if wire.DeliverablesMet != nil {
		deliverables = *wire.DeliverablesMet
	}

	scores := map[string]float64{"brand_safety": brandSafety}
	if wire.QualityScore != nil {
		scores["quality"] = clampScore(*wire.QualityScore)
	}
	if wire.AuthenticityScore != nil {
		scores["authenticity"] = clampScore(*wire.AuthenticityScore)
	}

	return AuditResult{
		ContentScore:     overall,
		TierAchieved:     tier,
		BrandSafe:        brandSafety >= BrandSafetyThreshold,
		BrandSafetyScore: brandSafety,
		DeliverablesMet:  deliverables,
		Reasoning:        strings.TrimSpace(wire.Reasoning),
		DetailedScores:   scores,
	}, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}

func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// clampTier bounds the float before converting, so huge values cannot
// overflow int.
func clampTier(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxTier:
		return MaxTier
	}
	return int(math.Round(v))
}
