package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeErrorIsThroughWrapping(t *testing.T) {
	err := ErrLocked.WrapMsg("message busy", "sid", "IM1")
	wrapped := WrapMsg(err, "mutate annotations")

	assert.True(t, ErrLocked.Is(wrapped))
	assert.False(t, ErrLockUnavailable.Is(wrapped))
	assert.True(t, IsTransient(wrapped))
	assert.Contains(t, wrapped.Error(), "sid=IM1")
}

func TestCodeRelation(t *testing.T) {
	err := ErrAlertNotFound.Wrap()
	assert.True(t, ErrRecordNotFound.Is(err))
	assert.False(t, ErrAlertNotFound.Is(ErrRecordNotFound.Wrap()))
	assert.Equal(t, "alert does not exist", AsCodeError(err).Msg)
}

func TestAsCodeErrorFallsBackToInternal(t *testing.T) {
	ce := AsCodeError(errors.New("disk on fire"))
	assert.Equal(t, ServerInternalError, ce.Code)
	assert.Equal(t, "disk on fire", ce.Detail)
}

func TestNewErrorKeyValues(t *testing.T) {
	err := New("bad input", "field", "type", "odd")
	assert.Equal(t, "bad input, field=type, odd=MISSING", err.Error())
	assert.True(t, err.Is(err.Wrap()))
}
