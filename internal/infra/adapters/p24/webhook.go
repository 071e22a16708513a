package p24

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifyWebhookSignature checks the optional secondary signature header
// ("sha256=<hmac-hex>" over the raw body) that some integrations attach to
// settlement notifications. Constant-time comparison; the header value may
// carry the scheme prefix or the bare hex.
func VerifyWebhookSignature(secret string, body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), signaturePrefix)
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}
