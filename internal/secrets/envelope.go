package secrets

import (
	"time"
)

// TimestampLayout is the UTC layout used for envelope and signature timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Envelope is one encrypted record. Signature fields are empty for unsigned
// envelopes.
type Envelope struct {
	EncryptedKey    string `json:"encrypted_key"`
	IV              string `json:"iv"`
	Ciphertext      string `json:"ciphertext"`
	Timestamp       string `json:"timestamp"`
	Signature       string `json:"signature,omitempty"`
	SignedTimestamp string `json:"signed_timestamp,omitempty"`
	CertSerial      string `json:"cert_serial,omitempty"`
}

// Signed reports whether the envelope carries a signature.
func (e *Envelope) Signed() bool {
	return e.Signature != "" && e.SignedTimestamp != ""
}

// SignatureInfo is the output of Sign.
type SignatureInfo struct {
	Signature       string `json:"signature"`
	SignedTimestamp string `json:"signed_timestamp"`
	CertSerial      string `json:"cert_serial"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout as well as any RFC 3339 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
