package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sentinel-hq/bastion/pkg/decision"
	"sentinel-hq/bastion/pkg/evaluation"
)

// connectionRequest is the wire shape of an evaluation request.
type connectionRequest struct {
	SourceIP        string `json:"source_ip"`
	DestinationIP   string `json:"destination_ip"`
	DestinationPort int    `json:"destination_port"`
	Protocol        string `json:"protocol"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// ConnectionHandler serves POST /connection and GET /connection/{id}.
type ConnectionHandler struct {
	evaluator *evaluation.Evaluator
	logger    *slog.Logger
}

// NewConnectionHandler creates a connection handler.
func NewConnectionHandler(evaluator *evaluation.Evaluator, logger *slog.Logger) *ConnectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionHandler{
		evaluator: evaluator,
		logger:    logger.With("component", "handlers.connection"),
	}
}

// Evaluate handles POST /connection.
func (h *ConnectionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	conn, err := req.toConnection()
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := h.evaluator.Evaluate(r.Context(), conn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Get handles GET /connection/{id}.
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "connection id is required")
		return
	}

	rec, err := h.evaluator.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// toConnection validates the request and builds the domain connection.
// All edge validation happens here so the core receives clean input.
func (req *connectionRequest) toConnection() (decision.Connection, error) {
	var conn decision.Connection

	if strings.TrimSpace(req.SourceIP) == "" {
		return conn, fmt.Errorf("source_ip is required")
	}
	if net.ParseIP(req.SourceIP) == nil {
		return conn, fmt.Errorf("source_ip %q is not a valid IP address", req.SourceIP)
	}
	if strings.TrimSpace(req.DestinationIP) == "" {
		return conn, fmt.Errorf("destination_ip is required")
	}
	if net.ParseIP(req.DestinationIP) == nil {
		return conn, fmt.Errorf("destination_ip %q is not a valid IP address", req.DestinationIP)
	}
	if req.DestinationPort < 1 || req.DestinationPort > 65535 {
		return conn, fmt.Errorf("destination_port %d outside 1-65535", req.DestinationPort)
	}

	var protocol decision.Protocol
	switch strings.ToUpper(req.Protocol) {
	case string(decision.ProtocolTCP):
		protocol = decision.ProtocolTCP
	case string(decision.ProtocolUDP):
		protocol = decision.ProtocolUDP
	default:
		return conn, fmt.Errorf("protocol %q must be TCP or UDP", req.Protocol)
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return conn, fmt.Errorf("timestamp %q is not RFC3339: %v", req.Timestamp, err)
		}
		timestamp = parsed
	}

	return decision.Connection{
		SourceIP:        req.SourceIP,
		DestinationIP:   req.DestinationIP,
		DestinationPort: req.DestinationPort,
		Protocol:        protocol,
		Timestamp:       timestamp,
	}, nil
}
