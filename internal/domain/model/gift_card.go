package model

import (
	"strings"
	"time"
)

// CodeLength is the number of symbols in a generated gift card code.
const CodeLength = 16

// CodeAlphabet holds the 36 symbols codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GiftCard is a single-use credential granting one entitlement activation.
// Used flips false->true exactly once and UsedAt is set iff Used.
type GiftCard struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	PlanID    string     `json:"plan_id"`
	Email     string     `json:"email"`
	CreatedBy *string    `json:"created_by,omitempty"` // nil for purchase-driven cards
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ExpiredAt reports whether the card is past its expiry at t.
func (g *GiftCard) ExpiredAt(t time.Time) bool {
	return !t.Before(g.ExpiresAt)
}

// NormalizeCode maps user input onto the stored form: uppercase, without
// spaces or group separators.
func NormalizeCode(in string) string {
	var b strings.Builder
	b.Grow(len(in))
	for _, r := range strings.ToUpper(in) {
		switch r {
		case ' ', '-', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatCode renders a stored code as XXXX-XXXX-XXXX-XXXX for display.
func FormatCode(code string) string {
	if len(code) <= 4 {
		return code
	}
	var parts []string
	for i := 0; i < len(code); i += 4 {
		end := i + 4
		if end > len(code) {
			end = len(code)
		}
		parts = append(parts, code[i:end])
	}
	return strings.Join(parts, "-")
}

// EntitlementGrant is returned by a successful redemption so the caller can
// activate premium access for the recipient.
type EntitlementGrant struct {
	GiftCardID  string    `json:"gift_card_id"`
	Code        string    `json:"code"`
	PlanID      string    `json:"plan_id"`
	Email       string    `json:"email"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	AccessUntil time.Time `json:"access_until"`
}
