package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorCollectsReasons(t *testing.T) {
	verr := &ValidationError{}
	require.NoError(t, verr.Err())

	verr.Add("entry %d: amount must be greater than zero", 2)
	verr.Add("date is required")

	err := fmt.Errorf("vouchers: build: %w", verr.Err())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var target *ValidationError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, []string{"entry 2: amount must be greater than zero", "date is required"}, target.Reasons)
	assert.Contains(t, err.Error(), "date is required")
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &NotFoundError{Kind: "ledger", ID: "x"}, ErrNotFound)
	assert.ErrorIs(t, &ConflictError{Reason: "cycle"}, ErrConflict)

	cause := errors.New("connection refused")
	terr := &TransportError{Op: "fetch trial balance", Err: cause}
	assert.ErrorIs(t, terr, ErrTransport)
	assert.ErrorIs(t, terr, cause)
	assert.Equal(t, "fetch trial balance: transport failure: connection refused", terr.Error())

	terr = &TransportError{Op: "commit voucher", StatusCode: 400, Detail: "voucher is not balanced"}
	assert.Equal(t, "commit voucher: transport failure (status 400): voucher is not balanced", terr.Error())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxSearchLimit, ClampLimit(10_000))
}
