package domain

import "time"

type TaskStatus string

const (
	Initiated     TaskStatus = "INITIATED"
	Querying      TaskStatus = "QUERYING"
	Queried       TaskStatus = "QUERIED"
	Constructing  TaskStatus = "CONSTRUCTING"
	Constructed   TaskStatus = "CONSTRUCTED"
	Uploading     TaskStatus = "UPLOADING"
	Sent          TaskStatus = "SENT"
	Downloaded    TaskStatus = "DOWNLOADED"
	StoreProcess  TaskStatus = "STORE_PROCESS"
	Stored        TaskStatus = "STORED"
	PartialStored TaskStatus = "PARTIAL_STORED"
	Failure       TaskStatus = "FAILURE"
	Success       TaskStatus = "SUCCESS"
)

// statusGraph declares every legal transition edge. A cycle task walks
// INITIATED..CONSTRUCTED and terminates with SUCCESS; a batch task enters at
// INITIATED, goes straight to UPLOADING and continues until a store terminal.
// FAILURE is reachable from any non-terminal status.
var statusGraph = map[TaskStatus][]TaskStatus{
	Initiated:    {Querying, Uploading, Failure},
	Querying:     {Queried, Failure},
	Queried:      {Constructing, Failure},
	Constructing: {Constructed, Failure},
	Constructed:  {Uploading, Success, Failure},
	Uploading:    {Sent, Failure},
	Sent:         {Downloaded, Success, Failure},
	Downloaded:   {StoreProcess, Failure},
	StoreProcess: {Stored, PartialStored, Failure},
}

// CanTransition reports whether from -> to is a declared edge.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves the status.
func (s TaskStatus) IsTerminal() bool {
	return len(statusGraph[s]) == 0
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case Initiated, Querying, Queried, Constructing, Constructed, Uploading,
		Sent, Downloaded, StoreProcess, Stored, PartialStored, Failure, Success:
		return true
	}
	return false
}

// DialerTask is one tracked pipeline stage run. Cycle tasks carry no batch
// number; batch tasks carry the batch they upload. Rows are never deleted,
// and Status is only ever changed together with an appended DialerTaskEvent.
type DialerTask struct {
	ID         int64      `json:"id"`
	StageType  string     `json:"stage_type"`
	Vendor     string     `json:"vendor"`
	Status     TaskStatus `json:"status"`
	BatchNo    *int32     `json:"batch_no,omitempty"`
	ExternalID *string    `json:"external_id,omitempty"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// DialerTaskEvent is the append-only audit row behind every status change.
type DialerTaskEvent struct {
	ID        int64      `json:"-"`
	TaskID    int64      `json:"task_id"`
	Status    TaskStatus `json:"status"`
	DataCount *int32     `json:"data_count,omitempty"`
	Error     *string    `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
