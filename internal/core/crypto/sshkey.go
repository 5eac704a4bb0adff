// Package crypto inspects SSH deployment keys.
// This is part of the Functional Core - all functions are pure with no I/O.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidSSHKey is returned when the SSH key cannot be parsed.
	ErrInvalidSSHKey = errors.New("invalid SSH key format")
)

// =============================================================================
// Fingerprints
// =============================================================================

// PublicKey returns the public half of an SSH private key. Passphrase
// protected keys in OpenSSH format carry their public key unencrypted, so
// they are accepted without the passphrase.
func PublicKey(privateKey []byte) (ssh.PublicKey, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err == nil {
		return signer.PublicKey(), nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && missing.PublicKey != nil {
		return missing.PublicKey, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidSSHKey, err)
}

// Fingerprint returns the SHA256 fingerprint of a private key, in the format
// printed by ssh-add -l.
func Fingerprint(privateKey []byte) (string, error) {
	pub, err := PublicKey(privateKey)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pub), nil
}

// AuthorizedKeyFingerprint returns the SHA256 fingerprint of a public key in
// authorized_keys format, such as the content of id_rsa.pub.
func AuthorizedKeyFingerprint(authorizedKey []byte) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(authorizedKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSSHKey, err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// ContainsFingerprint reports whether one of the wire-format public keys
// (as listed by an ssh-agent) has the given fingerprint.
func ContainsFingerprint(blobs [][]byte, fingerprint string) bool {
	for _, blob := range blobs {
		pub, err := ssh.ParsePublicKey(blob)
		if err != nil {
			continue
		}
		if ssh.FingerprintSHA256(pub) == fingerprint {
			return true
		}
	}
	return false
}
