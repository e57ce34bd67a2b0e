package cryptography

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"

	"github.com/btcsuite/btcutil/base58"
)

// GenerateKeyPair creates a fresh node identity. The public key travels as
// base58 over the raw 32 bytes, the private key as base64-encoded PKCS8, the
// formats GenerateSignature and VerifySignature expect.
func GenerateKeyPair() (string, string, error) {

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		return "", "", err
	}

	privateKeyPkcs8, err := x509.MarshalPKCS8PrivateKey(privateKey)

	if err != nil {
		return "", "", err
	}

	return base58.Encode(publicKey), base64.StdEncoding.EncodeToString(privateKeyPkcs8), nil
}

// GenerateSignature signs msg with the node's base64-encoded PKCS8 private key
// and returns the signature as base64. Used for directory service requests.
func GenerateSignature(base64PrivateKey, msg string) string {
	// Decode private key from base64 to raw bytes
	privateKeyAsBytes, _ := base64.StdEncoding.DecodeString(base64PrivateKey)

	// Deserialize private key
	privKeyInterface, err := x509.ParsePKCS8PrivateKey(privateKeyAsBytes)
	if err != nil {
		return ""
	}
	finalPrivateKey, ok := privKeyInterface.(ed25519.PrivateKey)
	if !ok {
		return ""
	}

	msgAsBytes := []byte(msg)
	signature, _ := finalPrivateKey.Sign(rand.Reader, msgAsBytes, crypto.Hash(0))

	return base64.StdEncoding.EncodeToString(signature)
}

// VerifySignature checks a base64 signature against a base58-encoded ed25519
// public key (raw 32 bytes on the wire, ASN.1 prefix re-attached here).
func VerifySignature(message, base58PubKey, base64Signature string) bool {
	// Decode everything
	msgAsBytes := []byte(message)
	publicKeyAsBytesWithNoAsnPrefix := base58.Decode(base58PubKey)

	// Add ASN.1 prefix
	pubKeyAsBytesWithAsnPrefix := append([]byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}, publicKeyAsBytesWithNoAsnPrefix...)
	pubKeyInterface, err := x509.ParsePKIXPublicKey(pubKeyAsBytesWithAsnPrefix)
	if err != nil {
		return false
	}
	finalPubKey, ok := pubKeyInterface.(ed25519.PublicKey)
	if !ok {
		return false
	}

	signature, _ := base64.StdEncoding.DecodeString(base64Signature)

	return ed25519.Verify(finalPubKey, msgAsBytes, signature)
}
