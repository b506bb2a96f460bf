// Package cart provides the shopping cart aggregate.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// LineItem represents one product line in a cart.
type LineItem struct {
	ProductKey       string   `json:"product_key"`       // Unique per product name
	ProductPrice     string   `json:"product_price"`     // Display string, e.g. "$10.00"
	Quantity         int      `json:"quantity"`          // Always >= 1 while present
	ProductRating    string   `json:"product_rating"`
	Description      string   `json:"description"`
	ImageRefs        []string `json:"image_refs,omitempty"`
	Category         string   `json:"category"`
	Seller           string   `json:"seller"`
	DeliveryEstimate string   `json:"delivery_estimate"`
}

// clone returns a deep copy of the line item.
func (li LineItem) clone() LineItem {
	out := li
	if li.ImageRefs != nil {
		out.ImageRefs = make([]string, len(li.ImageRefs))
		copy(out.ImageRefs, li.ImageRefs)
	}
	return out
}

// Cart is an ordered collection of line items owned by a single session.
// Insertion order is display order. Mutations are not safe for concurrent
// use; callers serialize access per session (the store does this).
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []LineItem `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// New creates an empty cart for the session.
func New(sessionID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges the item into the cart. An existing line with the same
// product key has its quantity incremented by one; otherwise a new line is
// appended with quantity 1.
func (c *Cart) AddItem(item LineItem) {
	for i := range c.Lines {
		if c.Lines[i].ProductKey == item.ProductKey {
			c.Lines[i].Quantity++
			c.touch()
			return
		}
	}
	line := item.clone()
	line.Quantity = 1
	c.Lines = append(c.Lines, line)
	c.touch()
}

// RemoveItem deletes the line with the given product key. Removing an absent
// key is a no-op, not an error.
func (c *Cart) RemoveItem(productKey string) {
	for i := range c.Lines {
		if c.Lines[i].ProductKey == productKey {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return
		}
	}
}

// SetQuantity sets the quantity of an existing line. Negative quantities are
// clamped to zero first; a resulting quantity of zero removes the line.
// Returns false when no line with the key is present (callers that hold the
// full item re-add via Upsert instead).
func (c *Cart) SetQuantity(productKey string, quantity int) bool {
	if quantity < 0 {
		quantity = 0
	}
	if quantity == 0 {
		for i := range c.Lines {
			if c.Lines[i].ProductKey == productKey {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				c.touch()
				return true
			}
		}
		return false
	}
	for i := range c.Lines {
		if c.Lines[i].ProductKey == productKey {
			c.Lines[i].Quantity = quantity
			c.touch()
			return true
		}
	}
	return false
}

// Upsert sets the quantity for the item, re-adding the line when it is no
// longer present. Setting a quantity <= 0 removes the line.
func (c *Cart) Upsert(item LineItem, quantity int) {
	if c.SetQuantity(item.ProductKey, quantity) {
		return
	}
	if quantity <= 0 {
		return
	}
	line := item.clone()
	line.Quantity = quantity
	c.Lines = append(c.Lines, line)
	c.touch()
}

// Clear empties the cart unconditionally.
func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Snapshot is a point-in-time immutable copy of the cart lines. Pricing and
// checkout operate on snapshots so concurrent cart edits cannot perturb an
// in-flight computation.
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Lines     []LineItem `json:"lines"`
	TakenAt   time.Time  `json:"taken_at"`
}

// Snapshot returns an immutable copy of the current cart lines.
func (c *Cart) Snapshot() Snapshot {
	lines := make([]LineItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, line.clone())
	}
	return Snapshot{
		SessionID: c.SessionID,
		Lines:     lines,
		TakenAt:   time.Now().UTC(),
	}
}

// IsEmpty reports whether the snapshot has no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Fingerprint returns a stable digest of the snapshot contents. The checkout
// sequencer pins the fingerprint at begin and re-validates it before SDK
// handoff to detect cart drift.
func (s Snapshot) Fingerprint() string {
	h := sha256.New()
	for _, line := range s.Lines {
		fmt.Fprintf(h, "%s|%s|%d\n", line.ProductKey, line.ProductPrice, line.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the digest of the cart's current contents.
func (c *Cart) Fingerprint() string {
	return c.Snapshot().Fingerprint()
}
