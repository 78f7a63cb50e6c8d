package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarks(t *testing.T) {
	base := errors.New("connection reset")

	tr := Transient(base, "get payment")
	assert.True(t, IsTransient(tr))
	assert.False(t, IsPermanent(tr))
	assert.ErrorIs(t, tr, base)
	assert.Contains(t, tr.Error(), "get payment")

	wrapped := fmt.Errorf("webhook: %w", tr)
	assert.True(t, IsTransient(wrapped))

	pe := Permanent(base, "decode")
	assert.True(t, IsPermanent(pe))
	assert.False(t, IsTransient(pe))

	assert.Nil(t, Transient(nil, "x"))
	assert.Nil(t, Permanent(nil, "x"))
	assert.Nil(t, Wrap(nil, "x"))
}
