package structures

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapErrorKinds(t *testing.T) {

	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{ERR_NETWORK_TIMEOUT, true},
		{ERR_PEER_DISCONNECTION, true},
		{ERR_INSUFFICIENT_PEERS, true},
		{ERR_GENESIS_FAILURE, false},
		{ERR_INVALID_PEER, false},
		{ERR_PRECONDITION, false},
		{ERR_INVALID_INPUT, false},
	}

	for _, tt := range tests {

		t.Run(string(tt.kind), func(t *testing.T) {

			err := NewBootstrapError(tt.kind, "details for operators")

			require.Equal(t, tt.retryable, IsRetryable(err))

			require.Equal(t, tt.kind, KindOf(err))

		})

	}

}

// The operator-facing text and the user-facing text must never be the same
// string: users get no stack traces, no raw errors, no internals.
func TestUserMessageNeverLeaksDetail(t *testing.T) {

	require := require.New(t)

	cause := errors.New("dial tcp 10.0.0.7:8333: connection refused")

	err := WrapBootstrapError(ERR_NETWORK_TIMEOUT, "peer probe failed", cause)

	require.NotEqual(err.Error(), err.UserMessage())

	require.NotContains(err.UserMessage(), "dial tcp")

	require.NotContains(err.UserMessage(), "connection refused")

}

func TestBootstrapErrorUnwrap(t *testing.T) {

	require := require.New(t)

	cause := errors.New("root cause")

	err := WrapBootstrapError(ERR_GENESIS_FAILURE, "wrapped", cause)

	require.ErrorIs(err, cause)

	wrappedAgain := fmt.Errorf("outer context: %w", err)

	require.Equal(ERR_GENESIS_FAILURE, KindOf(wrappedAgain))

	require.True(errors.Is(wrappedAgain, cause))

}

func TestKindOfPlainError(t *testing.T) {

	require.Equal(t, ERR_GENESIS_FAILURE, KindOf(errors.New("anything untyped")))

	require.False(t, IsRetryable(errors.New("anything untyped")))

}

func TestUserMessageOfUnknownKind(t *testing.T) {

	err := NewBootstrapError(ErrorKind("SomethingNew"), "detail")

	require.NotEmpty(t, err.UserMessage())

	require.NotContains(t, err.UserMessage(), "detail")

}
