package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Signer produces the ACCESS-* headers of private Bitget V2 endpoints.
type Signer struct {
	accessKey  string
	secretKey  string
	passphrase string
	now        func() time.Time // Replaced in tests for stable signatures
}

func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  accessKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// HasCredentials reports whether private endpoints can be called.
func (s *Signer) HasCredentials() bool {
	return s.accessKey != "" && s.secretKey != ""
}

// GenerateHeaders signs one request. path has no host, query is already encoded and
// body is the exact JSON sent; both may be empty.
//
// The signed payload is millis + METHOD + path[?query] + body, HMAC-SHA256 with the
// secret key, base64 encoded.
func (s *Signer) GenerateHeaders(method, path, query, body string) map[string]string {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	requestPath := path
	if query != "" {
		requestPath += "?" + query
	}

	return map[string]string{
		"ACCESS-KEY":        s.accessKey,
		"ACCESS-SIGN":       computeHmacSha256(timestamp+method+requestPath+body, s.secretKey),
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": s.passphrase,
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}
}

func computeHmacSha256(message string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
