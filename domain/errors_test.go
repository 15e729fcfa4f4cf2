package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"duplicate name", &DuplicateNameError{GuildID: "G1", Name: "Gold"}, ErrDuplicateName},
		{"insufficient funds", &InsufficientFundsError{Balance: 100, Delta: -150}, ErrInsufficientFunds},
		{"not found", NewNotFound("wallet", "G1/U1"), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("failed to do thing: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
			assert.NotErrorIs(t, wrapped, ErrConflictExceeded)
		})
	}
}

func TestProvisioningError(t *testing.T) {
	t.Parallel()

	cause := errors.New("throttled")
	err := fmt.Errorf("startup: %w", &ProvisioningError{Table: "currencies", Op: "create", Err: cause})

	var provErr *ProvisioningError
	assert.True(t, errors.As(err, &provErr))
	assert.Equal(t, "currencies", provErr.Table)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provisioning table currencies: create failed: throttled")
}

func TestConfigurationError(t *testing.T) {
	t.Parallel()

	err := &ConfigurationError{Missing: []string{"DISCORD_TOKEN", "AWS_REGION"}}
	assert.Equal(t, "missing required environment variables: DISCORD_TOKEN, AWS_REGION", err.Error())
}
