package polymarket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Credentials are the CLOB L2 API credentials. Address is the EOA that
// derived the API key.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	Address    string
}

// Empty reports whether no API key is configured.
func (c Credentials) Empty() bool {
	return c.APIKey == ""
}

// sign computes the L2 HMAC signature over timestamp+method+path+body.
// The secret and the signature both use URL-safe base64.
func (c Credentials) sign(timestamp, method, requestPath string, body []byte) (string, error) {
	secret, err := base64.URLEncoding.DecodeString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(timestamp + method + requestPath))
	h.Write(body)
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// apply sets the POLY_* headers on req. requestPath excludes the query
// string.
func (c Credentials) apply(req *http.Request, requestPath string, body []byte, now time.Time) error {
	timestamp := strconv.FormatInt(now.Unix(), 10)

	signature, err := c.sign(timestamp, req.Method, requestPath, body)
	if err != nil {
		return err
	}

	req.Header.Set("POLY_API_KEY", c.APIKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.Passphrase)
	req.Header.Set("POLY_ADDRESS", c.Address)
	return nil
}
