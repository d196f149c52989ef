package eufy

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

const (
	// cipherKeyLen is the AES-256 key length taken from the shared secret.
	cipherKeyLen = 32

	// cipherIVLen is the CBC IV length taken from the shared secret.
	cipherIVLen = aes.BlockSize
)

// splitSecret returns the AES key and IV for a shared secret.
//
// The IV is the first 16 bytes of the key itself. The vendor backend
// derives it this way, so changing it breaks interoperability.
func splitSecret(secret []byte) (key, iv []byte, err error) {
	if len(secret) < cipherKeyLen {
		return nil, nil, fmt.Errorf("%w: key material is %d bytes, need %d", ErrInvalidPeerKey, len(secret), cipherKeyLen)
	}
	return secret[:cipherKeyLen], secret[:cipherIVLen], nil
}

// Encrypt pads plaintext with PKCS#7, encrypts it with AES-256-CBC using
// key material from secret, and returns standard base64 text.
func Encrypt(plaintext, secret []byte) (string, error) {
	key, iv, err := splitSecret(secret)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPeerKey, err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
//
// Returns an error wrapping ErrDecrypt for invalid base64, a ciphertext
// length that is not a positive multiple of the block size, or bad padding.
func Decrypt(ciphertext string, secret []byte) ([]byte, error) {
	key, iv, err := splitSecret(secret)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecrypt, len(raw), aes.BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecrypt)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecrypt)
		}
	}
	return data[:len(data)-n], nil
}
