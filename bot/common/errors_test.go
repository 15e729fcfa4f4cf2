package common

import (
	"errors"
	"fmt"
	"testing"

	"dndbot/domain"

	"github.com/stretchr/testify/assert"
)

func TestFromDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantSystem  bool
	}{
		{
			name:        "duplicate currency",
			err:         fmt.Errorf("create: %w", &domain.DuplicateNameError{GuildID: "g1", Name: "gold"}),
			wantMessage: "A currency named **gold** already exists in this server.",
		},
		{
			name:        "insufficient funds",
			err:         &domain.InsufficientFundsError{Balance: 100, Delta: -150},
			wantMessage: "Insufficient funds: the balance is 100 and the change is -150.",
		},
		{
			name:        "not found",
			err:         fmt.Errorf("lookup: %w", domain.NewNotFound("currency", "gems")),
			wantMessage: "No currency found.",
		},
		{
			name:        "invalid input",
			err:         fmt.Errorf("failed: %w: amount must not be zero", domain.ErrInvalidInput),
			wantMessage: "amount must not be zero",
		},
		{
			name:        "conflict exceeded",
			err:         fmt.Errorf("failed to adjust balance: %w", domain.ErrConflictExceeded),
			wantMessage: "The server is busy right now. Please try again.",
		},
		{
			name:        "ledger key taken",
			err:         fmt.Errorf("failed to adjust balance: transaction key k: %w", domain.ErrLedgerKeyTaken),
			wantMessage: "The ledger already holds a different entry for this change. Please ask an administrator to check the ledger.",
		},
		{
			name:        "ledger pending",
			err:         fmt.Errorf("%w: timeout", domain.ErrLedgerPending),
			wantMessage: "The balance was updated, but its ledger entry is delayed and will be recorded shortly.",
		},
		{
			name:        "unexpected",
			err:         errors.New("connection reset"),
			wantMessage: genericMessage,
			wantSystem:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromDomainError(tt.err)
			assert.Equal(t, tt.wantMessage, got.UserMessage)
			assert.True(t, got.Ephemeral)
			assert.ErrorIs(t, got, tt.err)
			if tt.wantSystem {
				assert.Equal(t, "unexpected error", got.LogMessage)
			}
		})
	}
}

func TestFromDomainError_PassesBotErrorThrough(t *testing.T) {
	t.Parallel()

	original := NewUserError("Pick a smaller amount.", "amount too large")
	got := FromDomainError(fmt.Errorf("wrapped: %w", original))
	assert.Same(t, original, got)
}

func TestBotError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "invalid input", NewUserError("x", "invalid input").Error())
	assert.Equal(t, "store failure: boom", NewSystemError(errors.New("boom"), "store failure").Error())
}
