package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("enroll: %w", Clone(ErrCourseFull, ""))

	appErr := FromError(wrapped)
	assert.Equal(t, "COURSE_FULL", appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestFromErrorHidesInfrastructureErrors(t *testing.T) {
	appErr := FromError(stderrors.New("pq: connection refused"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, ErrInternal.Message, appErr.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := Clone(ErrAlreadyEnrolled, "custom message")
	assert.True(t, stderrors.Is(err, ErrAlreadyEnrolled))
	assert.False(t, stderrors.Is(err, ErrCourseFull))
	assert.True(t, HasCode(fmt.Errorf("ctx: %w", err), "ALREADY_ENROLLED"))
}
