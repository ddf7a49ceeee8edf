package scoring

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"sentinel-hq/bastion/pkg/decision"
)

// ReputationScorer scores connections from in-memory reputation tables
// of suspicious addresses and ports, with a randomized baseline to
// simulate model variance. It satisfies the Scorer contract exactly and
// is intended as a stand-in until a real model is wired behind the same
// interface.
type ReputationScorer struct {
	mu              sync.RWMutex
	suspiciousIPs   map[string]float64
	suspiciousPorts map[int]float64
	rng             *rand.Rand
	rngMu           sync.Mutex
	logger          *slog.Logger
}

// ReputationScorerConfig configures the reputation scorer.
type ReputationScorerConfig struct {
	// SuspiciousIPs maps addresses to their base score. When nil, a
	// default threat-intelligence seed is used.
	SuspiciousIPs map[string]float64

	// SuspiciousPorts maps ports to their base score. When nil, a
	// default seed covering commonly attacked services is used.
	SuspiciousPorts map[int]float64

	// Seed fixes the random source for reproducible scores. Zero means
	// a non-deterministic source.
	Seed int64
}

// defaultSuspiciousIPs is the seed reputation table for addresses.
func defaultSuspiciousIPs() map[string]float64 {
	return map[string]float64{
		"192.168.1.100": 0.85,
		"10.0.0.99":     0.75,
		"172.16.0.50":   0.65,
	}
}

// defaultSuspiciousPorts is the seed reputation table for ports.
func defaultSuspiciousPorts() map[int]float64 {
	return map[int]float64{
		22:   0.6,  // SSH, often targeted
		23:   0.8,  // Telnet, insecure protocol
		3389: 0.7,  // RDP
		445:  0.75, // SMB
		1433: 0.65, // MSSQL exposure
	}
}

// NewReputationScorer creates a reputation scorer.
func NewReputationScorer(cfg ReputationScorerConfig, logger *slog.Logger) *ReputationScorer {
	if logger == nil {
		logger = slog.Default()
	}

	ips := cfg.SuspiciousIPs
	if ips == nil {
		ips = defaultSuspiciousIPs()
	}
	ports := cfg.SuspiciousPorts
	if ports == nil {
		ports = defaultSuspiciousPorts()
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return &ReputationScorer{
		suspiciousIPs:   ips,
		suspiciousPorts: ports,
		rng:             rng,
		logger:          logger.With("component", "scoring.reputation"),
	}
}

// Score computes the anomaly score for a connection from the reputation
// tables. The result is clamped to [0,1] and rounded to two decimals.
func (s *ReputationScorer) Score(ctx context.Context, conn decision.Connection) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	score := s.uniform(0.1, 0.3)

	s.mu.RLock()
	if base, ok := s.suspiciousIPs[conn.SourceIP]; ok && base > score {
		score = base
	}
	if base, ok := s.suspiciousIPs[conn.DestinationIP]; ok && base > score {
		score = base
	}
	if base, ok := s.suspiciousPorts[conn.DestinationPort]; ok && base > score {
		score = base
	}
	s.mu.RUnlock()

	// UDP outside DNS and NTP is slightly more suspicious.
	if conn.Protocol == decision.ProtocolUDP &&
		conn.DestinationPort != 53 && conn.DestinationPort != 123 {
		score = math.Min(score+0.1, 1.0)
	}

	// Jitter simulating model variance, then clamp and round.
	score += s.uniform(-0.05, 0.05)
	score = math.Max(0.0, math.Min(1.0, score))
	score = math.Round(score*100) / 100

	s.logger.Debug("anomaly score computed",
		"source_ip", conn.SourceIP,
		"destination_ip", conn.DestinationIP,
		"destination_port", conn.DestinationPort,
		"score", score,
	)

	return score, nil
}

// AddSuspiciousIP adds or updates an address in the reputation table.
// The base score is clamped to [0,1].
func (s *ReputationScorer) AddSuspiciousIP(ip string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspiciousIPs[ip] = math.Max(0.0, math.Min(1.0, score))
}

// AddSuspiciousPort adds or updates a port in the reputation table.
// The base score is clamped to [0,1].
func (s *ReputationScorer) AddSuspiciousPort(port int, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspiciousPorts[port] = math.Max(0.0, math.Min(1.0, score))
}

// uniform draws from [min, max) under the rng lock; rand.Rand is not
// safe for concurrent use.
func (s *ReputationScorer) uniform(min, max float64) float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return min + s.rng.Float64()*(max-min)
}
