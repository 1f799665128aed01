package errormgr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(registry *errormgr.Registry) *errormgr.Manager {
	return errormgr.NewManager(registry, errormgr.NewDispatcher(zap.NewNop()), i18n.New("en"), "en", zap.NewNop())
}

func TestHandle_BuildsLocalizedInfo(t *testing.T) {
	m := newManager(errormgr.NewRegistry())

	info, err := m.Handle(context.Background(), "VIRUS_FOUND", map[string]any{"filename": "cat.png"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "VIRUS_FOUND", info.ResolvedCode)
	assert.Contains(t, info.UserMessage, "cat.png")
	assert.Contains(t, info.DevMessage, "cat.png")
	assert.Equal(t, errormgr.BlockingFull, info.Blocking)
	assert.False(t, info.Timestamp.IsZero())
}

func TestHandle_UnknownCodeResolvesThroughFallbackChain(t *testing.T) {
	m := newManager(errormgr.NewRegistry())

	info, err := m.Handle(context.Background(), "NOT_A_REAL_CODE", nil, errors.New("boom"))
	require.NoError(t, err)

	assert.Equal(t, errormgr.CodeUndefined, info.ResolvedCode)
	assert.Equal(t, "NOT_A_REAL_CODE", info.Context["_original_code"])
	assert.Equal(t, "boom", info.CauseSummary)
}

// When even the fallback is missing, Handle returns the fatal error
// without attempting to resolve FATAL_FALLBACK_FAILURE itself: the
// fatal path must not recurse.
func TestHandle_FatalPathDoesNotRecurse(t *testing.T) {
	m := newManager(errormgr.NewEmptyRegistry())

	info, err := m.Handle(context.Background(), "NOPE", nil, nil)
	assert.Nil(t, info)

	var fatal *errormgr.FatalFallbackError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "NOPE", fatal.RequestedCode)
}

func TestDefine_VisibleToSubsequentHandles(t *testing.T) {
	m := newManager(errormgr.NewRegistry())
	m.Define("CUSTOM_CODE", errormgr.ErrorConfig{
		Type:           errormgr.TypeWarning,
		Blocking:       errormgr.BlockingNot,
		UserMessageKey: "errors.user.upload_failed",
		HTTPStatus:     400,
		DisplayMode:    errormgr.DisplayToast,
	})

	info, err := m.Handle(context.Background(), "CUSTOM_CODE", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM_CODE", info.ResolvedCode)
	assert.Equal(t, 400, info.HTTPStatus)
}
