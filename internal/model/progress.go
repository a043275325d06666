package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissionStatus is the lifecycle state of a MissionProgress.
type MissionStatus string

// Mission progress states.
const (
	StatusPending   MissionStatus = "PENDING"
	StatusActive    MissionStatus = "ACTIVE"
	StatusCompleted MissionStatus = "COMPLETED"
	StatusFailed    MissionStatus = "FAILED"
)

// AllStatuses lists every mission status.
var AllStatuses = []MissionStatus{StatusPending, StatusActive, StatusCompleted, StatusFailed}

var allowedTransitions = map[MissionStatus][]MissionStatus{
	StatusPending: {StatusActive, StatusFailed},
	StatusActive:  {StatusCompleted, StatusFailed},
}

// IsTerminal reports whether no further transitions are possible.
func (s MissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is a known status.
func (s MissionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s MissionStatus) CanTransitionTo(next MissionStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Baseline is the snapshot captured when a mission is activated.
type Baseline struct {
	CategorySpend    *decimal.Decimal `json:"category_spend,omitempty"`
	GoalPct          *decimal.Decimal `json:"goal_pct,omitempty"`
	TPS              decimal.Decimal  `json:"tps"`
	RDR              decimal.Decimal  `json:"rdr"`
	ILI              decimal.Decimal  `json:"ili"`
	TransactionCount int              `json:"transaction_count"`
}

// MissionProgress is a user's live instance of a mission.
type MissionProgress struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Baseline    *Baseline
	Metrics     map[string]any
	Mission     *Mission
	Status      MissionStatus
	Message     string
	ID          int64
	UserID      int64
	MissionID   int64
	Progress    float64
}

// Deadline returns when the mission fails if unfinished. The second return
// is false when the progress has not been started.
func (p *MissionProgress) Deadline(m *Mission) (time.Time, bool) {
	if p.StartedAt == nil {
		return time.Time{}, false
	}
	return m.Deadline(*p.StartedAt), true
}
