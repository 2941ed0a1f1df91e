package types

import "time"

// ExecutionPhase is one stage of the cross-chain trade pipeline.
type ExecutionPhase string

const (
	PhasePending             ExecutionPhase = "PENDING"
	PhaseSwapping            ExecutionPhase = "SWAPPING"
	PhaseBridging            ExecutionPhase = "BRIDGING"
	PhaseAwaitingAttestation ExecutionPhase = "AWAITING_ATTESTATION"
	PhaseClaiming            ExecutionPhase = "CLAIMING"
	PhaseTrading             ExecutionPhase = "TRADING"
	PhaseCompleted           ExecutionPhase = "COMPLETED"
	PhaseFailed              ExecutionPhase = "FAILED"
	PhaseCancelled           ExecutionPhase = "CANCELLED"
)

// PipelinePhases lists the non-terminal phases in their intended order.
var PipelinePhases = []ExecutionPhase{ //nolint:gochecknoglobals // immutable table
	PhasePending,
	PhaseSwapping,
	PhaseBridging,
	PhaseAwaitingAttestation,
	PhaseClaiming,
	PhaseTrading,
}

// IsTerminal reports whether no further transition can leave p.
func (p ExecutionPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Valid reports whether p is a member of the phase enum.
func (p ExecutionPhase) Valid() bool {
	return p.Order() >= 0 || p.IsTerminal()
}

// Order returns the position of p in the pipeline, or -1 for terminal and
// unknown phases.
func (p ExecutionPhase) Order() int {
	for i, phase := range PipelinePhases {
		if phase == p {
			return i
		}
	}
	return -1
}

// ParsePhase converts a string to a phase, reporting whether it is known.
func ParsePhase(s string) (ExecutionPhase, bool) {
	p := ExecutionPhase(s)
	return p, p.Valid()
}

// TransactionEvidence holds the on-chain or venue identifiers recorded as
// each phase confirms.
type TransactionEvidence struct {
	Swap   string `json:"swap,omitempty"`
	Bridge string `json:"bridge,omitempty"`
	Claim  string `json:"claim,omitempty"`
	Trade  string `json:"trade,omitempty"`
}

// Set stores txHash in the slot owned by phase. Phases without a slot are
// ignored and false is returned.
func (e *TransactionEvidence) Set(phase ExecutionPhase, txHash string) bool {
	switch phase {
	case PhaseSwapping:
		e.Swap = txHash
	case PhaseBridging:
		e.Bridge = txHash
	case PhaseClaiming:
		e.Claim = txHash
	case PhaseTrading:
		e.Trade = txHash
	default:
		return false
	}
	return true
}

// Map returns the populated slots keyed by name.
func (e TransactionEvidence) Map() map[string]string {
	out := make(map[string]string, 4)
	if e.Swap != "" {
		out["swap"] = e.Swap
	}
	if e.Bridge != "" {
		out["bridge"] = e.Bridge
	}
	if e.Claim != "" {
		out["claim"] = e.Claim
	}
	if e.Trade != "" {
		out["trade"] = e.Trade
	}
	return out
}

// ExecutionRun is one attempt to carry a TradeIntent through all phases.
type ExecutionRun struct {
	ID              string                           `json:"id"`
	IntentID        string                           `json:"intentId"`
	CurrentPhase    ExecutionPhase                   `json:"currentPhase"`
	CompletedPhases []ExecutionPhase                 `json:"completedPhases"`
	StartedAt       time.Time                        `json:"startedAt"`
	UpdatedAt       time.Time                        `json:"updatedAt"`
	CompletedAt     *time.Time                       `json:"completedAt,omitempty"`
	PhaseDurations  map[ExecutionPhase]time.Duration `json:"phaseDurations"`
	Transactions    TransactionEvidence              `json:"transactions"`
	Error           string                           `json:"error,omitempty"`
}

// Clone returns a deep copy of r.
func (r *ExecutionRun) Clone() *ExecutionRun {
	if r == nil {
		return nil
	}
	c := *r
	c.CompletedPhases = append([]ExecutionPhase(nil), r.CompletedPhases...)
	c.PhaseDurations = make(map[ExecutionPhase]time.Duration, len(r.PhaseDurations))
	for k, v := range r.PhaseDurations {
		c.PhaseDurations[k] = v
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// CostEstimate is a fee projection for an input amount. All values are in
// the smallest collateral unit. NetAmount is negative when fees exceed the
// amount.
type CostEstimate struct {
	SwapFee    uint64 `json:"swapFee"`
	BridgeFee  uint64 `json:"bridgeFee"`
	TradingFee uint64 `json:"tradingFee"`
	TotalFee   uint64 `json:"totalFee"`
	NetAmount  int64  `json:"netAmount"`
}
