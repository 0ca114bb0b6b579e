package memory

// Tier identifies where an item currently lives. An item is in exactly
// one tier at a time; moving tiers is a move, not a copy.
type Tier string

const (
	TierL1 Tier = "l1" // hot, ordered, session-scoped
	TierL2 Tier = "l2" // warm, ordered, session-scoped
	TierL3 Tier = "l3" // cold, semantic, persists across sessions
)

// Item is a single remembered conversation turn.
type Item struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Tier      Tier    `json:"tier"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Confidence float64 `json:"confidence,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Retrieved is a query result with its provenance.
type Retrieved struct {
	Item  Item    `json:"item"`
	Tier  Tier    `json:"tier"`
	Score float64 `json:"score"`
}

// ConsolidationReport summarizes an explicit demotion pass.
type ConsolidationReport struct {
	Demoted  int `json:"demoted"`  // moved L1 -> L2
	Admitted int `json:"admitted"` // moved L2 -> L3
	Rejected int `json:"rejected"` // dropped by the validator
}
