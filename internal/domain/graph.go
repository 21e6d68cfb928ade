package domain

type NegotiationPhase string

const (
	PhaseAnalyzing           NegotiationPhase = "analyzing"
	PhaseCreatorTurn         NegotiationPhase = "creator_turn"
	PhaseAdvertiserTurn      NegotiationPhase = "advertiser_turn"
	PhaseCheckingTermination NegotiationPhase = "checking_termination"
	PhaseNegotiationClosing  NegotiationPhase = "closing"
)

type SettlementPhase string

const (
	PhasePendingAudit      SettlementPhase = "pending_audit"
	PhaseCalculating       SettlementPhase = "calculating"
	PhasePreparing         SettlementPhase = "preparing"
	PhaseTransferring      SettlementPhase = "transferring"
	PhaseSettlementClosing SettlementPhase = "closing"
)

type GraphEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

type Graph struct {
	Name  string      `json:"name"`
	Entry string      `json:"entry"`
	Nodes []string    `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

func NegotiationGraph() Graph {
	return Graph{
		Name:  "negotiation",
		Entry: string(PhaseAnalyzing),
		Nodes: []string{
			string(PhaseAnalyzing),
			string(PhaseCreatorTurn),
			string(PhaseAdvertiserTurn),
			string(PhaseCheckingTermination),
			string(PhaseNegotiationClosing),
		},
		Edges: []GraphEdge{
			{From: string(PhaseAnalyzing), To: string(PhaseCreatorTurn)},
			{From: string(PhaseCreatorTurn), To: string(PhaseAdvertiserTurn), Condition: "counter"},
			{From: string(PhaseCreatorTurn), To: string(PhaseNegotiationClosing), Condition: "accept|reject"},
			{From: string(PhaseAdvertiserTurn), To: string(PhaseCheckingTermination)},
			{From: string(PhaseCheckingTermination), To: string(PhaseCreatorTurn), Condition: "negotiating"},
			{From: string(PhaseCheckingTermination), To: string(PhaseNegotiationClosing), Condition: "terminal"},
		},
	}
}

func SettlementGraph() Graph {
	return Graph{
		Name:  "settlement",
		Entry: string(PhasePendingAudit),
		Nodes: []string{
			string(PhasePendingAudit),
			string(PhaseCalculating),
			string(PhasePreparing),
			string(PhaseTransferring),
			string(PhaseSettlementClosing),
		},
		Edges: []GraphEdge{
			{From: string(PhasePendingAudit), To: string(PhaseCalculating), Condition: "brand_safe"},
			{From: string(PhasePendingAudit), To: string(PhaseSettlementClosing), Condition: "brand_safety_failed"},
			{From: string(PhaseCalculating), To: string(PhasePreparing)},
			{From: string(PhasePreparing), To: string(PhaseTransferring), Condition: "instruction_ready"},
			{From: string(PhasePreparing), To: string(PhaseSettlementClosing), Condition: "preparation_failed"},
			{From: string(PhaseTransferring), To: string(PhaseSettlementClosing)},
		},
	}
}
