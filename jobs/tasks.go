package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWorkpackagesSync pulls work packages from OpenProject into the
	// backend cache.
	TaskWorkpackagesSync = "workpackages:sync"
	// TaskWorkpackagesRefresh asks the backend to refresh stale entries.
	TaskWorkpackagesRefresh = "workpackages:refresh"
)

// SyncPayload describes who asked for a sync.
type SyncPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// NewSyncTask constructs a workpackages:sync task.
func NewSyncTask(payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkpackagesSync, data), nil
}

// NewRefreshTask constructs a workpackages:refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskWorkpackagesRefresh, nil)
}

// NewTask builds a supported task by type name with a default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskWorkpackagesSync:
		return NewSyncTask(SyncPayload{RequestedBy: "cli", Reason: "manual"})
	case TaskWorkpackagesRefresh:
		return NewRefreshTask(), nil
	default:
		return nil, fmt.Errorf("jobs: unsupported task %q", name)
	}
}
