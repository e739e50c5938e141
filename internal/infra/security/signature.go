package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// WebhookSignature verifies Mercado Pago's x-signature header
// ("ts=<unix>,v1=<hex hmac>") against the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
type WebhookSignature struct {
	// MaxSkew bounds how old ts may be. Zero disables the check.
	MaxSkew time.Duration
	Now     func() time.Time
}

// Verify returns nil when header is a valid signature of the notification
// under secret.
func (w WebhookSignature) Verify(secret, header, dataID, requestID string) error {
	ts, v1 := parseSignatureHeader(header)
	if ts == "" || v1 == "" {
		return fmt.Errorf("%w: malformed header", ErrBadSignature)
	}
	if w.MaxSkew > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad ts", ErrBadSignature)
		}
		// ts is sent in seconds or milliseconds depending on the product
		if sec > 1e12 {
			sec /= 1000
		}
		now := time.Now
		if w.Now != nil {
			now = w.Now
		}
		if d := now().Sub(time.Unix(sec, 0)); d > w.MaxSkew || d < -w.MaxSkew {
			return fmt.Errorf("%w: stale ts", ErrBadSignature)
		}
	}
	want := Sign(secret, Manifest(dataID, requestID, ts))
	got, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return fmt.Errorf("%w: bad digest", ErrBadSignature)
	}
	wantRaw, _ := hex.DecodeString(want)
	if !hmac.Equal(got, wantRaw) {
		return ErrBadSignature
	}
	return nil
}

// Manifest builds the signed template. Empty parts are omitted, and
// alphanumeric data IDs are lower-cased.
func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of manifest.
func Sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(h string) (ts, v1 string) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	return ts, v1
}
