package ticketing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrNotConfigured, KindValidation},
		{ErrOpenCategoryMissing, KindValidation},
		{ErrOpenTicketExists, KindValidation},
		{ErrNotTicketChannel, KindValidation},
		{ErrAlreadyParticipant, KindValidation},
		{ErrNotParticipant, KindValidation},
		{ErrMissingSupportRole, KindPermission},
		{ErrNotClaimantOrSupport, KindPermission},
		{ErrCannotRemoveCreator, KindPermission},
		{storeError(errors.New("boom")), KindStore},
		{providerError(errors.New("boom")), KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := storeError(cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "socket closed")
	require.NotContains(t, err.UserMessage(), "socket closed")
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling claim: %w", ErrMissingSupportRole)
	require.Equal(t, KindPermission, KindOf(wrapped))
}

func TestKindOfUnknownError(t *testing.T) {
	require.Equal(t, KindStore, KindOf(errors.New("mystery")))
}
