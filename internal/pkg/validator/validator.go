// Package validator checks candidate files against the upload policy
// before any network or disk I/O happens.
package validator

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/sizeparse"
)

// Error codes surfaced on validation failure. They resolve through the
// error registry on the server side.
const (
	CodeInvalidExtension = "INVALID_FILE_EXTENSION"
	CodeInvalidMimeType  = "MIME_TYPE_NOT_ALLOWED"
	CodeFileTooLarge     = "MAX_FILE_SIZE"
	CodeInvalidFilename  = "INVALID_FILE_NAME"
)

// filenamePattern allows letters, digits, dot, hyphen, underscore and
// space only.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._\- ]+$`)

// Policy is the server-supplied validation policy.
type Policy struct {
	AllowedExtensions []string
	AllowedMimeTypes  []string
	MaxFileSize       int64
}

// FileMeta is the candidate file's metadata. Validation never touches
// the file contents.
type FileMeta struct {
	Name     string
	MimeType string
	Size     int64
}

// ValidationResult carries the outcome and, on failure, the error code
// and the localized user-facing message.
type ValidationResult struct {
	OK      bool
	Code    string
	Message string
}

// Validator validates files against an injected policy.
type Validator struct {
	policy     Policy
	extensions map[string]bool
	mimeTypes  map[string]bool
	translator *i18n.Translator
	locale     string
}

func New(policy Policy, translator *i18n.Translator, locale string) *Validator {
	extensions := make(map[string]bool, len(policy.AllowedExtensions))
	for _, ext := range policy.AllowedExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	mimeTypes := make(map[string]bool, len(policy.AllowedMimeTypes))
	for _, mt := range policy.AllowedMimeTypes {
		mimeTypes[strings.ToLower(mt)] = true
	}

	return &Validator{
		policy:     policy,
		extensions: extensions,
		mimeTypes:  mimeTypes,
		translator: translator,
		locale:     locale,
	}
}

// Validate runs the checks in order, short-circuiting on the first
// failure: extension, MIME type, size, filename charset.
func (v *Validator) Validate(meta FileMeta) ValidationResult {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(meta.Name), "."))
	if !v.extensions[ext] {
		return v.fail(CodeInvalidExtension, "validation.invalid_extension", map[string]string{"extension": ext})
	}

	if !v.mimeTypes[strings.ToLower(meta.MimeType)] {
		return v.fail(CodeInvalidMimeType, "validation.invalid_mime_type", map[string]string{"type": meta.MimeType})
	}

	if meta.Size > v.policy.MaxFileSize {
		return v.fail(CodeFileTooLarge, "validation.file_too_large", map[string]string{"size": sizeparse.Format(v.policy.MaxFileSize)})
	}

	if !filenamePattern.MatchString(meta.Name) {
		return v.fail(CodeInvalidFilename, "validation.invalid_filename", map[string]string{"filename": meta.Name})
	}

	return ValidationResult{OK: true}
}

func (v *Validator) fail(code, messageKey string, repl map[string]string) ValidationResult {
	return ValidationResult{
		OK:      false,
		Code:    code,
		Message: v.translator.T(v.locale, messageKey, repl),
	}
}
