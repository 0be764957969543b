package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

type NodeRunStatus string

const (
	NodeRunStatusPending NodeRunStatus = "pending"
	NodeRunStatusRunning NodeRunStatus = "running"
	NodeRunStatusSuccess NodeRunStatus = "success"
	NodeRunStatusError   NodeRunStatus = "error"
)

type ExecutionRun struct {
	ExecutionID string     `json:"executionId" bson:"_id"`
	FlowID      string     `json:"flowId" bson:"flow_id"`
	Status      RunStatus  `json:"status" bson:"status"`
	StartTime   time.Time  `json:"startTime" bson:"start_time"`
	EndTime     *time.Time `json:"endTime,omitempty" bson:"end_time,omitempty"`
	Result      any        `json:"result,omitempty" bson:"result,omitempty"`
	Error       string     `json:"error,omitempty" bson:"error,omitempty"`
	NodeRuns    []NodeRun  `json:"nodeRuns,omitempty" bson:"-"`
	Artifacts   []Artifact `json:"artifacts,omitempty" bson:"-"`
}

// Clone copies the run and its node run slice so a snapshot can be shared
// while the run keeps progressing.
func (r ExecutionRun) Clone() ExecutionRun {
	clone := r

	if r.NodeRuns != nil {
		clone.NodeRuns = make([]NodeRun, len(r.NodeRuns))
		copy(clone.NodeRuns, r.NodeRuns)
	}

	if r.Artifacts != nil {
		clone.Artifacts = make([]Artifact, len(r.Artifacts))
		copy(clone.Artifacts, r.Artifacts)
	}

	if r.EndTime != nil {
		endTime := *r.EndTime
		clone.EndTime = &endTime
	}

	return clone
}

type NodeRun struct {
	ExecutionID string        `json:"executionId" bson:"execution_id"`
	NodeID      string        `json:"nodeId" bson:"node_id"`
	Type        NodeType      `json:"type" bson:"type"`
	Input       any           `json:"input,omitempty" bson:"input,omitempty"`
	Output      any           `json:"output,omitempty" bson:"output,omitempty"`
	Error       string        `json:"error,omitempty" bson:"error,omitempty"`
	Status      NodeRunStatus `json:"status" bson:"status"`
	StartTime   time.Time     `json:"startTime" bson:"start_time"`
	EndTime     *time.Time    `json:"endTime,omitempty" bson:"end_time,omitempty"`
}
