package listing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const (
	// StatusNotPublished marks a remote item that must never create,
	// update or protect a local listing.
	StatusNotPublished = "NOT_PUBLISHED"

	// UnknownKey is assigned when the remote item carries no usable
	// stock identifier. Such items are never matched against existing
	// records and are always treated as new.
	UnknownKey = "unknown"
)

// Attributes is the denormalized local copy of a remote item.
type Attributes struct {
	StockNumber   string  `json:"stock_number"`
	VIN           string  `json:"vin_number,omitempty"`
	Make          string  `json:"make,omitempty"`
	Model         string  `json:"model,omitempty"`
	Trim          string  `json:"trim,omitempty"`
	Year          int     `json:"year,omitempty"`
	Mileage       int     `json:"mileage,omitempty"`
	Price         float64 `json:"price,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	FuelType      string  `json:"fuel_type,omitempty"`
	Transmission  string  `json:"transmission,omitempty"`
	BodyType      string  `json:"body_type,omitempty"`
	ExteriorColor string  `json:"exterior_color,omitempty"`
	Doors         int     `json:"doors,omitempty"`
	DealerName    string  `json:"dealer_name,omitempty"`
	DealerPhone   string  `json:"dealer_phone,omitempty"`
	DealerCity    string  `json:"dealer_city,omitempty"`
	DealerZip     string  `json:"dealer_zip,omitempty"`
	Lifecycle     string  `json:"lifecycle_state,omitempty"`
	Status        string  `json:"status,omitempty"`
}

// Mapped is the result of mapping one remote item: the natural key, the
// derived title/slug, the attribute set and the item's image references.
type Mapped struct {
	Key       string
	VIN       string
	Title     string
	Slug      string
	Status    string
	Attrs     Attributes
	MediaRefs []string
}

// AttrsJSON marshals the attribute set for jsonb persistence.
func (m Mapped) AttrsJSON() json.RawMessage {
	raw, err := json.Marshal(m.Attrs)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// Map transforms one raw remote item into its local representation.
// It never fails: every extracted field degrades to a typed zero value
// when absent, and a missing stock id falls back to UnknownKey.
func Map(doc Document) Mapped {
	attrs := Attributes{
		StockNumber:   naturalKey(doc),
		VIN:           doc.Str("vehicle", "vin"),
		Make:          doc.Str("vehicle", "make"),
		Model:         doc.Str("vehicle", "model"),
		Trim:          doc.Str("vehicle", "trim"),
		Year:          doc.Int("vehicle", "year"),
		Mileage:       doc.Int("vehicle", "mileage"),
		Price:         doc.Float("pricing", "price", "amount"),
		Currency:      doc.Str("pricing", "price", "currency"),
		FuelType:      doc.Str("vehicle", "fuelType"),
		Transmission:  doc.Str("vehicle", "transmission"),
		BodyType:      doc.Str("vehicle", "bodyType"),
		ExteriorColor: doc.Str("vehicle", "exteriorColor"),
		Doors:         doc.Int("vehicle", "doors"),
		DealerName:    doc.Str("advertiser", "name"),
		DealerPhone:   doc.Str("advertiser", "phone"),
		DealerCity:    doc.Str("advertiser", "address", "city"),
		DealerZip:     doc.Str("advertiser", "address", "zip"),
		Lifecycle:     doc.Str("metadata", "lifecycleState"),
		Status:        doc.Str("status"),
	}

	return Mapped{
		Key:       attrs.StockNumber,
		VIN:       attrs.VIN,
		Title:     buildTitle(attrs),
		Slug:      buildSlug(attrs),
		Status:    attrs.Status,
		Attrs:     attrs,
		MediaRefs: mediaRefs(doc),
	}
}

func naturalKey(doc Document) string {
	if key := doc.Str("metadata", "stockId"); key != "" {
		return key
	}
	if key := doc.Str("metadata", "externalStockId"); key != "" {
		return key
	}
	return UnknownKey
}

// buildTitle derives "{year} {make} {model}" with empty components
// dropped rather than leaving stray spaces.
func buildTitle(attrs Attributes) string {
	parts := make([]string, 0, 3)
	if attrs.Year > 0 {
		parts = append(parts, strconv.Itoa(attrs.Year))
	}
	if attrs.Make != "" {
		parts = append(parts, attrs.Make)
	}
	if attrs.Model != "" {
		parts = append(parts, attrs.Model)
	}
	return strings.Join(parts, " ")
}

// buildSlug derives make-model-year-stock in kebab case. When every
// component is empty a randomly suffixed placeholder keeps the slug
// non-empty and collision-resistant.
func buildSlug(attrs Attributes) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{attrs.Make, attrs.Model} {
		if kp := kebab(p); kp != "" {
			parts = append(parts, kp)
		}
	}
	if attrs.Year > 0 {
		parts = append(parts, strconv.Itoa(attrs.Year))
	}
	if attrs.StockNumber != "" && attrs.StockNumber != UnknownKey {
		if kp := kebab(attrs.StockNumber); kp != "" {
			parts = append(parts, kp)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("listing-%06d", rand.Intn(1000000))
	}
	return strings.Join(parts, "-")
}

func kebab(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	lastDash := true
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func mediaRefs(doc Document) []string {
	items := doc.List("media", "images")
	if len(items) == 0 {
		return nil
	}
	refs := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if u := strings.TrimSpace(v); u != "" {
				refs = append(refs, u)
			}
		case map[string]any:
			if u, ok := v["url"].(string); ok {
				if u = strings.TrimSpace(u); u != "" {
					refs = append(refs, u)
				}
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}
