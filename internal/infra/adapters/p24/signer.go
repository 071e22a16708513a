package p24

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Request signing per the gateway's legacy protocol: an MD5 hex digest over a
// pipe-joined field list ending with the shared CRC secret. The algorithm and
// the exact field order are the gateway's wire contract and must be
// reproduced byte for byte, not modernized.

// RegistrationSign computes the digest for a transaction registration:
// sessionId|merchantId|amount|currency|crc.
func RegistrationSign(sessionID string, merchantID int, amount int64, currency, crc string) string {
	return signFields(fmt.Sprintf("%s|%d|%d|%s|%s", sessionID, merchantID, amount, currency, crc))
}

// VerificationSign computes the digest for a transaction verification:
// sessionId|orderId|amount|currency|crc.
func VerificationSign(sessionID, orderID string, amount int64, currency, crc string) string {
	return signFields(fmt.Sprintf("%s|%s|%d|%s|%s", sessionID, orderID, amount, currency, crc))
}

func signFields(joined string) string {
	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}
