// Package card provides stored payment card models and classification.
package card

import (
	"fmt"
	"strings"
	"time"
)

// StoredCard represents a credit card on the user's profile. Numbers are
// plain display strings; tokenization is out of scope.
type StoredCard struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`  // e.g. "Chase Sapphire Reserve"
	HolderName   string    `json:"holder_name"`
	Number       string    `json:"number"`        // Display string, not tokenized
	Expiry       string    `json:"expiry"`        // MM/YY
	SecurityCode string    `json:"security_code"`
	Network      Network   `json:"network"`       // Derived from the number
	ColorHint    string    `json:"color_hint"`    // Display color derived from the number
	RewardTags   []string  `json:"reward_tags,omitempty"`
	BenefitTags  []string  `json:"benefit_tags,omitempty"`
	APR          string    `json:"apr,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Network identifies the card network derived from the card number.
type Network string

const (
	NetworkVisa       Network = "VISA"
	NetworkMastercard Network = "MASTERCARD"
	NetworkAmex       Network = "AMERICAN EXPRESS"
	NetworkUnknown    Network = "UNKNOWN"
)

// Display colors per network.
const (
	ColorVisa       = "#1A1F71" // Visa blue
	ColorMastercard = "#EB001B" // Mastercard red
	ColorAmex       = "#1E1E1E" // Amex black
	ColorDefault    = "#006B54" // Default green
)

// ClassifyNetwork determines the card network from the leading digit.
func ClassifyNetwork(number string) Network {
	digits := digitsOnly(number)
	if digits == "" {
		return NetworkUnknown
	}
	switch digits[0] {
	case '4':
		return NetworkVisa
	case '5':
		return NetworkMastercard
	case '3':
		return NetworkAmex
	default:
		return NetworkUnknown
	}
}

// ColorFor returns the display color for a card number.
func ColorFor(number string) string {
	switch ClassifyNetwork(number) {
	case NetworkVisa:
		return ColorVisa
	case NetworkMastercard:
		return ColorMastercard
	case NetworkAmex:
		return ColorAmex
	default:
		return ColorDefault
	}
}

// Classify fills the derived Network and ColorHint fields from the number.
func (c *StoredCard) Classify() {
	c.Network = ClassifyNetwork(c.Number)
	c.ColorHint = ColorFor(c.Number)
}

// BIN returns the bank identification number: the first 6–8 digits of the
// card number, or "" when fewer than 6 digits are present.
func BIN(number string) string {
	digits := digitsOnly(number)
	if len(digits) < 6 {
		return ""
	}
	if len(digits) > 8 {
		return digits[:8]
	}
	return digits[:6]
}

// FormatNumber renders a card number as groups of four digits, capped at 19
// characters (16 digits plus spaces).
func FormatNumber(input string) string {
	digits := digitsOnly(input)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	formatted := b.String()
	if len(formatted) > 19 {
		formatted = formatted[:19]
	}
	return formatted
}

// FormatExpiry normalizes expiry input to MM/YY.
func FormatExpiry(input string) string {
	digits := digitsOnly(input)
	if len(digits) >= 2 {
		end := len(digits)
		if end > 4 {
			end = 4
		}
		if end == 2 {
			return digits[:2]
		}
		return digits[:2] + "/" + digits[2:end]
	}
	return digits
}

// ValidateExpiry checks an MM/YY expiry against the current month.
func ValidateExpiry(expiry string, now time.Time) error {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return fmt.Errorf("expiry must be MM/YY: %q", expiry)
	}
	var month, year int
	if _, err := fmt.Sscanf(expiry, "%02d/%02d", &month, &year); err != nil {
		return fmt.Errorf("expiry must be MM/YY: %q", expiry)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("expiry month out of range: %q", expiry)
	}

	currentYear := now.Year() % 100
	currentMonth := int(now.Month())
	if year < currentYear || (year == currentYear && month < currentMonth) {
		return fmt.Errorf("card expired: %q", expiry)
	}
	return nil
}

// MaskedNumber returns the card number with all but the last four digits
// masked, for logging and list views.
func MaskedNumber(number string) string {
	digits := digitsOnly(number)
	if len(digits) <= 4 {
		return digits
	}
	return "•••• " + digits[len(digits)-4:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
