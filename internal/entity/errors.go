package entity

import "errors"

// Domain errors
var (
	// File validation errors
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrInvalidMimeType   = errors.New("mime type not allowed")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidFilename   = errors.New("invalid file name")
	ErrTooManyFiles      = errors.New("too many files")
	ErrTotalSizeTooLarge = errors.New("total file size too large")

	// Task errors
	ErrStateRegression = errors.New("invalid task state transition")
	ErrTaskCancelled   = errors.New("upload cancelled")

	// Scan errors
	ErrVirusFound = errors.New("virus found")
	ErrScanFailed = errors.New("virus scan failed")

	// Request errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrFileNotFound     = errors.New("file not found")
	ErrUnknownChannel   = errors.New("unknown channel")
)
