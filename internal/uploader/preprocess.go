package uploader

import (
	"encoding/base64"
	"fmt"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
)

// Preprocessor is the pluggable step around the generic send for
// upload types that need it: a reversible pre-transmission transform
// and a post-transmission verification.
type Preprocessor interface {
	// Transform rewrites the task payload before transmission.
	Transform(task *entity.UploadTask) error
	// Verify checks the server response after a successful send.
	Verify(resp *entity.UploadResponse) error
}

// eppPreprocessor implements the EPP upload flow: the payload travels
// base64-encoded and the server must answer with a verification token.
type eppPreprocessor struct{}

// NewEPPPreprocessor returns the preprocessor registered for the "epp"
// upload type.
func NewEPPPreprocessor() Preprocessor {
	return eppPreprocessor{}
}

func (eppPreprocessor) Transform(task *entity.UploadTask) error {
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(task.Data)))
	base64.StdEncoding.Encode(encoded, task.Data)
	task.Data = encoded
	return nil
}

func (eppPreprocessor) Verify(resp *entity.UploadResponse) error {
	if resp.VerificationToken != "VALID" {
		return fmt.Errorf("verification token mismatch: got %q", resp.VerificationToken)
	}
	return nil
}
