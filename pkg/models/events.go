package models

import "time"

// EventType identifies an engine event on the wire
type EventType string

const (
	EventScanCompleted  EventType = "scan:completed"
	EventScanError      EventType = "scan:error"
	EventBetPlaced      EventType = "bet:placed"
	EventPositionClosed EventType = "position:closed"
)

// Event is the envelope published to all engine subscribers (websocket
// clients, redis streams). Payload is one of the *Event structs below.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScanCompletedEvent reports the outcome of one scan cycle
type ScanCompletedEvent struct {
	Opportunities []Opportunity       `json:"opportunities"`
	Allocation    PortfolioAllocation `json:"allocation"`
	ScanTimeMs    int64               `json:"scan_time_ms"`
}

// ScanErrorEvent reports a single source failure within a cycle
type ScanErrorEvent struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// BetPlacedEvent reports a successful bet placement
type BetPlacedEvent struct {
	Position    Position    `json:"position"`
	Opportunity Opportunity `json:"opportunity"`
}

// PositionClosedEvent reports a settled position
type PositionClosedEvent struct {
	Position Position           `json:"position"`
	Metrics  PerformanceMetrics `json:"metrics"`
}
