package entity

// ErrorPayload is the structured error body returned by the upload
// endpoint on failure, and the shape the client transport parses.
type ErrorPayload struct {
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	State     string `json:"state"`
	ErrorCode string `json:"errorCode"`
	Blocking  string `json:"blocking"`
}

// UploadResponse is the success body of the upload endpoint.
// VerificationToken is present only for upload types that require
// post-transmission verification.
type UploadResponse struct {
	Message           string `json:"message"`
	FileID            string `json:"fileId"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

// ConfigDocument is served by GET /api/uploads/config and drives the
// client-side validator and endpoint selection.
type ConfigDocument struct {
	Locale            string                       `json:"locale"`
	AvailableLocales  []string                     `json:"available_locales"`
	Translations      map[string]map[string]string `json:"translations"`
	AllowedExtensions []string                     `json:"allowed_extensions"`
	AllowedMimeTypes  []string                     `json:"allowed_mime_types"`
	MaxSize           int64                        `json:"max_size"`
	Endpoints         map[string]string            `json:"endpoints"`
	DefaultUploadType string                       `json:"default_upload_type"`
	ScanEnabled       bool                         `json:"scan_enabled"`
}

// FileStatusDocument is served by GET /api/uploads/status/{fileId} for
// clients polling the scan outcome instead of listening on the channel.
type FileStatusDocument struct {
	FileID     string `json:"fileId"`
	Filename   string `json:"filename"`
	UploadType string `json:"uploadType"`
	ScanStatus string `json:"scanStatus"`
}

// LimitsDocument is served by GET /api/uploads/limits: the negotiated
// minimum of platform-imposed and application-declared ceilings.
type LimitsDocument struct {
	MaxTotalSize          int64  `json:"max_total_size"`
	MaxFileSize           int64  `json:"max_file_size"`
	MaxFiles              int    `json:"max_files"`
	MaxTotalSizeFormatted string `json:"max_total_size_formatted"`
	MaxFileSizeFormatted  string `json:"max_file_size_formatted"`
}
