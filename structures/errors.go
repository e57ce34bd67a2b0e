package structures

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ERR_NETWORK_TIMEOUT    ErrorKind = "NetworkTimeout"
	ERR_PEER_DISCONNECTION ErrorKind = "PeerDisconnection"
	ERR_GENESIS_FAILURE    ErrorKind = "GenesisFailure"
	ERR_INVALID_PEER       ErrorKind = "InvalidPeer"
	ERR_INSUFFICIENT_PEERS ErrorKind = "InsufficientPeers"
	ERR_PRECONDITION       ErrorKind = "PreconditionError"
	ERR_INVALID_INPUT      ErrorKind = "InvalidInput"
)

// Operator-facing detail lives in Message/Err; the user-facing text comes from
// UserMessage() and deliberately carries no technical content. The two must
// never be the same string.
type BootstrapError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (bootstrapError *BootstrapError) Error() string {

	if bootstrapError.Err != nil {
		return fmt.Sprintf("%s: %s: %v", bootstrapError.Kind, bootstrapError.Message, bootstrapError.Err)
	}

	return fmt.Sprintf("%s: %s", bootstrapError.Kind, bootstrapError.Message)
}

func (bootstrapError *BootstrapError) Unwrap() error {
	return bootstrapError.Err
}

func NewBootstrapError(kind ErrorKind, message string) *BootstrapError {
	return &BootstrapError{Kind: kind, Message: message}
}

func WrapBootstrapError(kind ErrorKind, message string, err error) *BootstrapError {
	return &BootstrapError{Kind: kind, Message: message, Err: err}
}

var userMessagesPerKind = map[ErrorKind]string{
	ERR_NETWORK_TIMEOUT:    "The network is taking too long to respond. We will keep trying.",
	ERR_PEER_DISCONNECTION: "A network participant went offline. Looking for a replacement...",
	ERR_GENESIS_FAILURE:    "Network formation could not be completed.",
	ERR_INVALID_PEER:       "An incompatible node was ignored.",
	ERR_INSUFFICIENT_PEERS: "Not enough participants found yet. Waiting for more nodes to come online.",
	ERR_PRECONDITION:       "Finish your wallet and validator setup before connecting to the network.",
	ERR_INVALID_INPUT:      "The provided value is not valid.",
}

const USER_MESSAGE_RETRIES_EXHAUSTED = "Unable to form the network after several tries. Please check your internet connection and try again."

const USER_MESSAGE_NETWORK_FORMATION_REQUIRED = "This action becomes available once the network has been formed."

func (bootstrapError *BootstrapError) UserMessage() string {

	if message, ok := userMessagesPerKind[bootstrapError.Kind]; ok {
		return message
	}

	return "Something went wrong while preparing the network."
}

var retryableKinds = map[ErrorKind]struct{}{
	ERR_NETWORK_TIMEOUT:    {},
	ERR_PEER_DISCONNECTION: {},
	ERR_INSUFFICIENT_PEERS: {},
}

func IsRetryable(err error) bool {

	var bootstrapError *BootstrapError

	if !errors.As(err, &bootstrapError) {
		return false
	}

	_, retryable := retryableKinds[bootstrapError.Kind]

	return retryable
}

// KindOf extracts the typed kind from any error chain. Plain errors map to
// GenesisFailure so callers always get a classified value.
func KindOf(err error) ErrorKind {

	var bootstrapError *BootstrapError

	if errors.As(err, &bootstrapError) {
		return bootstrapError.Kind
	}

	return ERR_GENESIS_FAILURE
}

func UserMessageOf(err error) string {

	var bootstrapError *BootstrapError

	if errors.As(err, &bootstrapError) {
		return bootstrapError.UserMessage()
	}

	return "Something went wrong while preparing the network."
}
