// Package signing produces and verifies RSA signatures over manifest
// payloads and implements the Structured Field Values dictionary subset used
// for filter headers.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrCrypto is the sentinel for signing and verification failures. Signing
// never degrades silently to an unsigned result.
var ErrCrypto = errors.New("crypto error")

const signingKeyBits = 2048

// Sign signs the payload with the PEM-encoded RSA private key using SHA-256
// and PKCS#1 v1.5 padding, returning the signature in standard base64.
func Sign(payload []byte, privateKeyPEM string) (string, error) {
	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}

	hashed := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("%w: signing failed: %w", ErrCrypto, err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature over the payload against the PEM-encoded
// RSA public key. A well-formed but non-matching signature returns
// (false, nil); malformed inputs return an error.
func Verify(payload []byte, signatureB64, publicKeyPEM string) (bool, error) {
	key, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, fmt.Errorf("%w: malformed signature encoding: %w", ErrCrypto, err)
	}

	hashed := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], sig); err != nil {
		return false, nil
	}
	return true, nil
}

// GenerateKeyPair creates a fresh RSA key pair for channel signing, returned
// as (publicPEM, privatePEM).
func GenerateKeyPair() (string, string, error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("%w: key generation failed: %w", ErrCrypto, err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(pubPEM), string(privPEM), nil
}

func parsePrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in private key", ErrCrypto)
	}

	// PKCS#8 is what we generate; PKCS#1 keys from external tooling are
	// accepted too.
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not RSA", ErrCrypto)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed private key: %w", ErrCrypto, err)
	}
	return key, nil
}

func parsePublicKey(keyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in public key", ErrCrypto)
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is not RSA", ErrCrypto)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed public key: %w", ErrCrypto, err)
	}
	return key, nil
}
