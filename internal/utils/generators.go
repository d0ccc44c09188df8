package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ticketCodeBytes gives 96 bits of randomness per code, enough to make
// collisions negligible; issuance still re-checks against the store.
const ticketCodeBytes = 12

// GenerateTicketCode returns an opaque, uppercase hex admission code.
func GenerateTicketCode() (string, error) {
	byt := make([]byte, ticketCodeBytes)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return "TKT-" + strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GeneratePaymentGroupRef returns a date-stamped, human-shareable reference
// grouping every ticket of one purchase.
func GeneratePaymentGroupRef(now time.Time) (string, error) {
	byt := make([]byte, 6)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(byt))), nil
}
