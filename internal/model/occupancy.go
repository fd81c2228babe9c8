package model

import (
	"time"
)

// MotionReport is the body of a report sent by the sensor agent. Motion is a
// pointer so that a missing field can be told apart from an explicit false.
type MotionReport struct {
	Motion *bool `json:"motion" binding:"required"`
}

// MotionAck acknowledges an accepted report.
type MotionAck struct {
	Success    bool      `json:"success"`
	Motion     bool      `json:"motion"`
	ObservedAt time.Time `json:"observed_at"`
}

// OccupancyStatus is the query response for the current occupancy verdict.
type OccupancyStatus struct {
	Occupied       bool       `json:"occupied"`
	State          string     `json:"state"`
	Motion         bool       `json:"motion"`
	LastReportTime *time.Time `json:"last_report_time"`
	TimeoutSeconds int        `json:"timeout_seconds"`
}
