package cryptography

import "regexp"

// Wallet addresses are issued by the external wallet subsystem: the "PG"
// prefix followed by 38 lowercase-or-uppercase hex characters. Only the shape
// is validated here - wallet key material never enters this node.
const WALLET_ADDRESS_PREFIX = "PG"

var walletAddressPattern = regexp.MustCompile(`^PG[0-9a-fA-F]{38}$`)

func ValidateWalletAddress(address string) bool {

	return walletAddressPattern.MatchString(address)

}
