package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

const decisionFormat = `Respond with your decision and reasoning in JSON format:
{
    "decision": "accept" | "counter" | "reject",
    "reasoning": "Your detailed reasoning",
    "counter_offer": {
        "base_payment": number,
        "deliverables": "string",
        "deadline_days": number,
        "usage_rights": "standard" | "extended" | "perpetual",
        "exclusivity": boolean,
        "bonus_tiers": [{"tier": number, "bonus": number}]
    }
}
Include counter_offer only when the decision is "counter".`

const auditFormat = `Respond in JSON format:
{
    "brand_safety_score": number,
    "deliverables_met": boolean,
    "quality_score": number,
    "authenticity_score": number,
    "overall_score": number,
    "tier_achieved": number,
    "reasoning": "Detailed explanation"
}`

func systemPromptFor(role domain.Role) string {
	if role == domain.RoleAdvertiser {
		return "You are negotiating on behalf of an advertiser."
	}
	return "You are negotiating on behalf of a content creator."
}

func creatorPrompt(req ports.DecisionRequest) string {
	p := req.CreatorProfile
	var b strings.Builder
	b.WriteString("You are an AI agent representing a content creator in a brand deal negotiation.\n\n")
	b.WriteString("CREATOR PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(p.Name))
	fmt.Fprintf(&b, "- Followers: %d\n", p.Followers)
	fmt.Fprintf(&b, "- Engagement Rate: %.2f%%\n", p.EngagementRate)
	fmt.Fprintf(&b, "- Niche: %s\n", orUnknown(p.Niche))
	fmt.Fprintf(&b, "- Past Brand Deals: %d\n", p.PastDeals)
	fmt.Fprintf(&b, "- Minimum Rate: $%.2f/post\n\n", p.MinRate)
	fmt.Fprintf(&b, "ESTIMATED MARKET RATE: $%.2f (offer is %.2fx market)\n\n", req.Market.MarketRate, req.Market.OfferVsMarket)
	b.WriteString("CURRENT OFFER FROM ADVERTISER:\n")
	b.WriteString(formatTerms(req.Offer))
	b.WriteString("\n\nNEGOTIATION HISTORY:\n")
	b.WriteString(formatHistory(req.History))
	fmt.Fprintf(&b, "\n\nThis is round %d of at most %d.\n\n", req.RoundNumber+1, req.MaxRounds)
	b.WriteString("Your goal is to secure the best possible deal for your creator while maintaining a positive relationship.\n")
	b.WriteString("Consider:\n")
	b.WriteString("1. Is the offer at or above market rate for this creator's metrics?\n")
	b.WriteString("2. Are the deliverables reasonable given the timeline?\n")
	b.WriteString("3. Are there any concerning clauses (exclusivity, usage rights)?\n\n")
	b.WriteString(decisionFormat)
	return b.String()
}

func advertiserPrompt(req ports.DecisionRequest) string {
	a := req.AdvertiserRequirements
	var b strings.Builder
	b.WriteString("You are an AI agent representing an advertiser in a brand deal negotiation.\n\n")
	b.WriteString("CAMPAIGN REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- Campaign: %s\n", orUnknown(a.CampaignName))
	fmt.Fprintf(&b, "- Budget Per Creator: $%.2f\n", a.BudgetPerCreator)
	fmt.Fprintf(&b, "- Required Deliverables: %s\n", orUnknown(a.Deliverables))
	fmt.Fprintf(&b, "- Target Niche: %s\n", orUnknown(a.Niche))
	fmt.Fprintf(&b, "- Deadline: %s\n\n", orUnknown(a.Deadline))
	b.WriteString("CREATOR BEING NEGOTIATED WITH:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(req.CreatorProfile.Name))
	fmt.Fprintf(&b, "- Followers: %d\n", req.CreatorProfile.Followers)
	fmt.Fprintf(&b, "- Fit Score: %.0f%%\n\n", req.CreatorProfile.FitScore)
	b.WriteString("CREATOR'S COUNTER-OFFER:\n")
	b.WriteString(formatTerms(req.Offer))
	b.WriteString("\n\nNEGOTIATION HISTORY:\n")
	b.WriteString(formatHistory(req.History))
	fmt.Fprintf(&b, "\n\nThis is round %d of at most %d.\n\n", req.RoundNumber+1, req.MaxRounds)
	b.WriteString("Your goal is to secure a fair deal within budget while ensuring quality deliverables.\n")
	b.WriteString("Consider:\n")
	b.WriteString("1. Is the creator's ask within the campaign budget?\n")
	b.WriteString("2. Is this creator's audience worth a premium?\n")
	b.WriteString("3. Can we get better value elsewhere?\n\n")
	b.WriteString(decisionFormat)
	return b.String()
}

func auditPrompt(req ports.AuditRequest) string {
	s := req.Submission
	var b strings.Builder
	b.WriteString("You are a content auditor for brand deals. Analyze the submitted content against the contract requirements.\n\n")
	b.WriteString("CONTRACT TERMS:\n")
	b.WriteString(formatJSON(req.Terms))
	b.WriteString("\n\nCONTENT SUBMISSION:\n")
	fmt.Fprintf(&b, "- URL: %s\n", s.ContentURL)
	fmt.Fprintf(&b, "- Caption: %s\n", s.Caption)
	fmt.Fprintf(&b, "- Submitted: %s\n", s.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "- Platform: %s\n\n", s.Platform)
	b.WriteString("Evaluate the content on these criteria:\n")
	b.WriteString("1. Brand Safety (0-100): Is the content appropriate for the brand?\n")
	b.WriteString("2. Deliverables Met (Yes/No): Does it match the agreed deliverables?\n")
	b.WriteString("3. Quality Score (0-100): Production quality, engagement potential\n")
	b.WriteString("4. Authenticity (0-100): Does it feel genuine, not overly promotional?\n\n")
	b.WriteString("Based on the scores, determine the bonus tier:\n")
	b.WriteString("- Tier 0: Score < 60 (Base payment only)\n")
	b.WriteString("- Tier 1: Score 60-79 (Base + Tier 1 bonus)\n")
	b.WriteString("- Tier 2: Score 80-89 (Base + Tier 2 bonus)\n")
	b.WriteString("- Tier 3: Score 90+ (Base + Tier 3 bonus)\n\n")
	b.WriteString(auditFormat)
	return b.String()
}

func formatTerms(terms domain.TermSet) string {
	return formatJSON(terms)
}

func formatJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(raw)
}

func formatHistory(history []domain.Message) string {
	if len(history) == 0 {
		return "(no previous messages)"
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		line := fmt.Sprintf("[%s] %s", m.Role, m.Content)
		if m.Terms != nil {
			line += fmt.Sprintf(" (proposed base payment $%.2f)", m.Terms.BasePayment)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
