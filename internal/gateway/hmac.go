package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyHexHMAC checks a hex HMAC-SHA256 of body in constant time.
// A "sha256=" prefix on the signature is accepted.
func VerifyHexHMAC(secret, body []byte, signature string) error {
	if len(secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrInvalidSignature)
	}
	if subtle.ConstantTimeCompare(macSHA256(secret, body), got) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyBase64HMAC checks a base64 HMAC-SHA256 of body against any of the
// given signatures, as sent by DocuSign Connect during key rotation
func VerifyBase64HMAC(secret, body []byte, signatures ...string) error {
	if len(secret) == 0 {
		return ErrInvalidSignature
	}
	expected := macSHA256(secret, body)
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sig))
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare(expected, got) == 1 {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignHex returns the hex HMAC-SHA256 of body
func SignHex(secret, body []byte) string {
	return hex.EncodeToString(macSHA256(secret, body))
}

// SignBase64 returns the base64 HMAC-SHA256 of body
func SignBase64(secret, body []byte) string {
	return base64.StdEncoding.EncodeToString(macSHA256(secret, body))
}

func macSHA256(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
