package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolayk812/slotprice/internal/domain"
)

func TestToOrderState(t *testing.T) {
	for _, valid := range []string{"waiting", "confirmed", "rejected", "expired", "cancelled"} {
		state, err := domain.ToOrderState(valid)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderState(valid), state)
	}

	_, err := domain.ToOrderState("paid")
	assert.Error(t, err)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from domain.OrderState
		to   domain.OrderState
		want bool
	}{
		{domain.OrderStateWaiting, domain.OrderStateConfirmed, true},
		{domain.OrderStateWaiting, domain.OrderStateRejected, true},
		{domain.OrderStateWaiting, domain.OrderStateExpired, true},
		{domain.OrderStateWaiting, domain.OrderStateCancelled, true},
		{domain.OrderStateConfirmed, domain.OrderStateCancelled, true},

		{domain.OrderStateConfirmed, domain.OrderStateWaiting, false},
		{domain.OrderStateConfirmed, domain.OrderStateRejected, false},
		{domain.OrderStateConfirmed, domain.OrderStateExpired, false},
		{domain.OrderStateRejected, domain.OrderStateConfirmed, false},
		{domain.OrderStateExpired, domain.OrderStateConfirmed, false},
		{domain.OrderStateCancelled, domain.OrderStateWaiting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	// same state is valid, the repository decides what it means
	assert.NoError(t, domain.ValidateTransition("n1", domain.OrderStateConfirmed, domain.OrderStateConfirmed))
	assert.NoError(t, domain.ValidateTransition("n1", domain.OrderStateWaiting, domain.OrderStateConfirmed))

	err := domain.ValidateTransition("n1", domain.OrderStateRejected, domain.OrderStateConfirmed)
	require.Error(t, err)

	var transitionErr domain.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "n1", transitionErr.OrderNumber)
	assert.Equal(t, domain.OrderStateRejected, transitionErr.From)
	assert.Equal(t, domain.OrderStateConfirmed, transitionErr.To)
	assert.Contains(t, err.Error(), "invalid state")
}
