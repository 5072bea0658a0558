package client

import "github.com/halcyonlabs/trustplane/pkg/digest"

// HashCredential computes the Keccak-256 digest of raw credential bytes,
// hex-encoded the way the daemon expects ticket and settlement hashes.
// Hash material client-side; the daemon never sees credential contents.
func HashCredential(data []byte) string {
	return digest.Keccak256(data).String()
}
