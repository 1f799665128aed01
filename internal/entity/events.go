package entity

// ChannelUpload is the single real-time channel carrying upload events.
const ChannelUpload = "upload"

// Event states pushed over the upload channel. Clients switch on these
// to drive per-file progress; any unrecognized state is informational.
const (
	EventStateVirusScan    = "virusScan"
	EventStateAllClean     = "allFileScannedNotInfected"
	EventStateUploadFailed = "uploadFailed"
)

// UploadEvent is the payload shape of every event on the upload channel.
// ErrorCode is set on failure events so clients can distinguish an
// infected file from a scan that could not complete.
type UploadEvent struct {
	State     string `json:"state"`
	Message   string `json:"message"`
	FileID    string `json:"fileId,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}
