package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/deal-agents/internal/application"
	"github.com/viralforge/deal-agents/internal/contracts"
)

const maxRequestBytes = 1 << 20

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	readiness := h.service.Readiness()
	status := "ok"
	if !readiness.Healthy() {
		status = "degraded"
	}
	writeSuccess(w, http.StatusOK, "", contracts.HealthResponse{
		Status:  status,
		Service: h.service.ServiceName(),
		Orchestrators: map[string]string{
			"negotiation": readiness.Negotiation,
			"settlement":  readiness.Settlement,
		},
	})
}

// readyz only fails when negotiations cannot run at all. A degraded
// settlement path is reported in the body.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	readiness := h.service.Readiness()
	body := map[string]string{
		"negotiation": readiness.Negotiation,
		"settlement":  readiness.Settlement,
	}
	if readiness.Negotiation != application.ReadinessReady {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "negotiation orchestrator not ready", requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "ready", body)
}

func (h *Handler) startNegotiation(w http.ResponseWriter, r *http.Request) {
	var req contracts.StartNegotiationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	run, err := h.service.StartNegotiation(r.Context(), application.StartNegotiationInput{
		ContractID:             strings.TrimSpace(req.ContractID),
		CreatorID:              strings.TrimSpace(req.CreatorID),
		AdvertiserID:           strings.TrimSpace(req.AdvertiserID),
		CampaignID:             strings.TrimSpace(req.CampaignID),
		InitialOffer:           req.InitialOffer,
		CreatorProfile:         req.CreatorProfile,
		AdvertiserRequirements: req.AdvertiserRequirements,
		MaxRounds:              req.MaxRounds,
	})
	if err != nil {
		h.fail(w, r, "start_negotiation", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", toNegotiationResponse(run, true))
}

func (h *Handler) resumeNegotiation(w http.ResponseWriter, r *http.Request) {
	var req contracts.ResumeNegotiationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	run, err := h.service.ResumeNegotiation(r.Context(), req.State)
	if err != nil {
		h.fail(w, r, "resume_negotiation", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toNegotiationResponse(run, true))
}

func (h *Handler) getNegotiation(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetNegotiation(r.Context(), chi.URLParam(r, "contract_id"))
	if err != nil {
		h.fail(w, r, "get_negotiation", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toNegotiationResponse(run, false))
}

func (h *Handler) auditContent(w http.ResponseWriter, r *http.Request) {
	var req contracts.SettlementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, err := h.service.AuditContent(r.Context(), settlementInput(req))
	if err != nil {
		h.fail(w, r, "audit_content", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", contracts.AuditResponse{
		ContractID:         outcome.ContractID,
		AuditResult:        outcome.Audit,
		PaymentBreakdown:   outcome.Breakdown,
		RecommendedPayment: outcome.RecommendedPayment(),
	})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	var req contracts.SettlementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	run, err := h.service.Settle(r.Context(), settlementInput(req))
	if err != nil {
		h.fail(w, r, "settle", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", toSettlementResponse(run))
}

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetSettlement(r.Context(), chi.URLParam(r, "contract_id"))
	if err != nil {
		h.fail(w, r, "get_settlement", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toSettlementResponse(run))
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	items, err := h.service.ListActivity(r.Context(), entityID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.fail(w, r, "list_activity", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", contracts.ActivityResponse{EntityID: entityID, Items: items})
}

func (h *Handler) negotiationGraph(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "", h.service.NegotiationGraph())
}

func (h *Handler) settlementGraph(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "", h.service.SettlementGraph())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, message := mapDomainError(err)
	logHTTPOperationError(r.Context(), operation, status, code, err)
	writeError(w, status, code, message, requestIDFromContext(r.Context()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return false
	}
	return true
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
