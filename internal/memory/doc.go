// Package memory implements tiered conversational memory for agent
// sessions: a hot L1 list, a warm L2 list, and a validator-gated L3
// long-term semantic store. L1 and L2 are session-scoped; L3 persists
// across sessions within a namespace.
package memory
