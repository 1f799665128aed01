package entity

import (
	"fmt"
	"time"
)

// UploadType selects the endpoint and the optional pre-transmission
// transform for a file. The transport itself treats it as opaque.
type UploadType string

const (
	UploadTypeEGI     UploadType = "egi"
	UploadTypeEPP     UploadType = "epp"
	UploadTypeUtility UploadType = "utility"
)

// TaskState is the lifecycle state of one queued upload.
type TaskState string

const (
	TaskStateQueued       TaskState = "queued"
	TaskStateValidating   TaskState = "validating"
	TaskStateTransforming TaskState = "transforming"
	TaskStateUploading    TaskState = "uploading"
	TaskStateScanning     TaskState = "scanning"
	TaskStateFinalized    TaskState = "finalized"
	TaskStateFailed       TaskState = "failed"
	TaskStateCancelled    TaskState = "cancelled"
)

// taskStateRank orders the forward-progress states. Terminal states
// (failed, cancelled) are reachable from any non-terminal state.
var taskStateRank = map[TaskState]int{
	TaskStateQueued:       0,
	TaskStateValidating:   1,
	TaskStateTransforming: 2,
	TaskStateUploading:    3,
	TaskStateScanning:     4,
	TaskStateFinalized:    5,
}

// Terminal reports whether no further transitions are allowed from s.
func (s TaskState) Terminal() bool {
	return s == TaskStateFinalized || s == TaskStateFailed || s == TaskStateCancelled
}

// UploadTask represents one file queued for upload.
type UploadTask struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
	Data     []byte
	Type     UploadType
	State    TaskState
	Attempts int
	LastErr  *ErrorPayload
}

// Advance moves the task to the given state. States only move forward:
// a finalized task can never regress to validating, and terminal states
// accept no further transitions.
func (t *UploadTask) Advance(to TaskState) error {
	if t.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrStateRegression, t.State, to)
	}
	if to == TaskStateFailed || to == TaskStateCancelled {
		t.State = to
		return nil
	}
	if taskStateRank[to] < taskStateRank[t.State] {
		return fmt.Errorf("%w: %s -> %s", ErrStateRegression, t.State, to)
	}
	t.State = to
	return nil
}

// ScanStatus is the server-side virus-scan status of a stored file.
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusScanning ScanStatus = "scanning"
	ScanStatusClean    ScanStatus = "clean"
	ScanStatusInfected ScanStatus = "infected"
	ScanStatusFailed   ScanStatus = "failed"
	ScanStatusSkipped  ScanStatus = "skipped"
)

// StoredFile is the persisted metadata for an accepted upload.
type StoredFile struct {
	ID          string
	Filename    string
	MimeType    string
	Size        int64
	UploadType  UploadType
	ScanStatus  ScanStatus
	StoragePath string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ErrorOccurrence is one handled error, persisted for operators.
type ErrorOccurrence struct {
	ID           string
	Code         string
	ResolvedCode string
	HTTPStatus   int
	DevMessage   string
	Context      map[string]any
	CreatedAt    time.Time
}
