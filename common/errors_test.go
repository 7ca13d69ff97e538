package common

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppErrorKinds(t *testing.T) {
	wrapped := errors.Wrap(ErrForbidden("nope"), "toggle")

	assert.True(t, IsKind(wrapped, KindForbidden))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, "nope", AsAppError(wrapped).Message)
}

func TestAsAppError_PlainErrorIsInternal(t *testing.T) {
	cause := errors.New("disk on fire")
	appErr := AsAppError(cause)

	assert.Equal(t, KindInternal, appErr.Kind)
	assert.Equal(t, cause, errors.Cause(appErr.Err))
	assert.Contains(t, appErr.Error(), "disk on fire")
	assert.Nil(t, AsAppError(nil))
}

func TestErrNotFound(t *testing.T) {
	err := ErrNotFound("post", "hello")

	assert.Equal(t, "post hello not found", err.Error())
	assert.True(t, IsKind(err, KindNotFound))
}
