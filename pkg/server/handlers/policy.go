package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"sentinel-hq/bastion/pkg/decision"
	"sentinel-hq/bastion/pkg/policystore"
)

// PolicyHandler serves the /policy CRUD routes.
type PolicyHandler struct {
	store  policystore.Store
	logger *slog.Logger
}

// NewPolicyHandler creates a policy handler.
func NewPolicyHandler(store policystore.Store, logger *slog.Logger) *PolicyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyHandler{
		store:  store,
		logger: logger.With("component", "handlers.policy"),
	}
}

// Create handles POST /policy.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodePolicy(w, r)
	if !ok {
		return
	}

	if err := h.store.Create(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}

	h.logger.Info("policy created", "policy_id", p.ID, "action", p.Action)
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /policy.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if policies == nil {
		policies = []decision.Policy{}
	}
	writeJSON(w, http.StatusOK, policies)
}

// Get handles GET /policy/{id}.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /policy/{id}.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, ok := h.decodePolicy(w, r)
	if !ok {
		return
	}
	if p.ID != "" && p.ID != id {
		writeDetail(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("policy id %q in body does not match %q in path", p.ID, id))
		return
	}
	p.ID = id

	if err := h.store.Update(r.Context(), id, p); err != nil {
		writeError(w, r, err)
		return
	}

	h.logger.Info("policy updated", "policy_id", id, "action", p.Action)
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /policy/{id}.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	h.logger.Info("policy deleted", "policy_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// decodePolicy decodes and validates a policy body. On failure a 422
// response has already been written and ok is false.
func (h *PolicyHandler) decodePolicy(w http.ResponseWriter, r *http.Request) (decision.Policy, bool) {
	var p decision.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return p, false
	}
	if err := validatePolicy(p); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return p, false
	}
	return p, true
}

// validatePolicy checks a policy body before it reaches the store.
func validatePolicy(p decision.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy_id is required")
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy must have at least one condition")
	}

	switch p.Action {
	case decision.DecisionAllow, decision.DecisionAlert, decision.DecisionBlock:
	default:
		return fmt.Errorf("action %q must be allow, alert or block", p.Action)
	}

	for i, cond := range p.Conditions {
		switch cond.Field {
		case decision.FieldSourceIP, decision.FieldDestinationIP,
			decision.FieldDestinationPort, decision.FieldProtocol:
		default:
			return fmt.Errorf("condition %d: unknown field %q", i, cond.Field)
		}

		switch cond.Operator {
		case decision.OperatorEqual, decision.OperatorNotEqual,
			decision.OperatorGreaterThan, decision.OperatorLessThan,
			decision.OperatorGreaterEqual, decision.OperatorLessEqual:
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}

		if cond.Value == "" {
			return fmt.Errorf("condition %d: value is required", i)
		}
	}

	return nil
}
