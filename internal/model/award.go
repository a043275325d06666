package model

import "time"

// XPAward is the immutable audit record of one reward application.
type XPAward struct {
	CreatedAt   time.Time
	ID          string
	UserID      int64
	ProgressID  int64
	MissionID   int64
	Points      int
	LevelBefore int
	XPBefore    int
	LevelAfter  int
	XPAfter     int
}
