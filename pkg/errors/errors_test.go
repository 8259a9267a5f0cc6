package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	clone := Clone(ErrGradingSystemMissing, "grading system kcse has no rules")
	assert.Equal(t, "grading system kcse has no rules", clone.Message)
	assert.Equal(t, http.StatusPreconditionFailed, clone.Status)
	assert.True(t, errors.Is(clone, ErrGradingSystemMissing))
	assert.False(t, errors.Is(clone, ErrExamConfigMissing))
	assert.Equal(t, "grading system has no rules", ErrGradingSystemMissing.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())

	wrapped := fmt.Errorf("load: %w", ErrCacheMiss)
	assert.Same(t, ErrCacheMiss, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}
