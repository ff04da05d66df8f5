package listing

import (
	"encoding/json"
	"strings"
	"testing"
)

func docFromJSON(t *testing.T, raw string) Document {
	t.Helper()
	doc := ParseDocument(json.RawMessage(raw))
	if len(doc) == 0 && strings.TrimSpace(raw) != "{}" {
		t.Fatalf("ParseDocument produced empty document for %s", raw)
	}
	return doc
}

func TestDocumentAccessorsDegradeGracefully(t *testing.T) {
	t.Parallel()

	doc := docFromJSON(t, `{
		"vehicle": {"make": " Ford ", "year": 2021, "doors": "4", "mileage": null},
		"pricing": {"price": {"amount": "19999.50"}}
	}`)

	if got := doc.Str("vehicle", "make"); got != "Ford" {
		t.Fatalf("Str(vehicle.make) = %q, want %q", got, "Ford")
	}
	if got := doc.Str("vehicle", "missing", "deep"); got != "" {
		t.Fatalf("Str(missing path) = %q, want empty", got)
	}
	if got := doc.Int("vehicle", "year"); got != 2021 {
		t.Fatalf("Int(vehicle.year) = %d, want 2021", got)
	}
	if got := doc.Int("vehicle", "doors"); got != 4 {
		t.Fatalf("Int(vehicle.doors) = %d, want 4", got)
	}
	if got := doc.Int("vehicle", "mileage"); got != 0 {
		t.Fatalf("Int(null field) = %d, want 0", got)
	}
	if got := doc.Float("pricing", "price", "amount"); got != 19999.50 {
		t.Fatalf("Float(pricing.price.amount) = %v, want 19999.50", got)
	}
	if got := doc.Float("pricing", "price", "amount", "deeper"); got != 0 {
		t.Fatalf("Float(path through scalar) = %v, want 0", got)
	}
}

func TestParseDocumentMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `null`, `[1,2]`, `"text"`, `{broken`} {
		doc := ParseDocument(json.RawMessage(raw))
		if doc == nil {
			t.Fatalf("ParseDocument(%q) returned nil document", raw)
		}
		if got := doc.Str("any"); got != "" {
			t.Fatalf("ParseDocument(%q).Str() = %q, want empty", raw, got)
		}
	}
}

func TestMapNaturalKeyFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"stock id", `{"metadata": {"stockId": "ST-1", "externalStockId": "EXT-1"}}`, "ST-1"},
		{"external fallback", `{"metadata": {"externalStockId": "EXT-1"}}`, "EXT-1"},
		{"unknown", `{"metadata": {}}`, UnknownKey},
		{"no metadata", `{}`, UnknownKey},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := Map(ParseDocument(json.RawMessage(tt.raw)))
			if m.Key != tt.want {
				t.Fatalf("Map().Key = %q, want %q", m.Key, tt.want)
			}
		})
	}
}

func TestMapTitleAndSlug(t *testing.T) {
	t.Parallel()

	m := Map(docFromJSON(t, `{
		"metadata": {"stockId": "AB 123"},
		"vehicle": {"make": "Volkswagen", "model": "Golf GTI", "year": 2020}
	}`))

	if m.Title != "2020 Volkswagen Golf GTI" {
		t.Fatalf("Title = %q, want %q", m.Title, "2020 Volkswagen Golf GTI")
	}
	if m.Slug != "volkswagen-golf-gti-2020-ab-123" {
		t.Fatalf("Slug = %q, want %q", m.Slug, "volkswagen-golf-gti-2020-ab-123")
	}
}

func TestMapTitleDropsEmptyComponents(t *testing.T) {
	t.Parallel()

	m := Map(docFromJSON(t, `{
		"metadata": {"stockId": "S1"},
		"vehicle": {"model": "Corsa"}
	}`))
	if m.Title != "Corsa" {
		t.Fatalf("Title = %q, want %q", m.Title, "Corsa")
	}
	if m.Slug != "corsa-s1" {
		t.Fatalf("Slug = %q, want %q", m.Slug, "corsa-s1")
	}
}

func TestMapSlugPlaceholderWhenAllEmpty(t *testing.T) {
	t.Parallel()

	m := Map(ParseDocument(json.RawMessage(`{}`)))
	if !strings.HasPrefix(m.Slug, "listing-") {
		t.Fatalf("Slug = %q, want listing- placeholder", m.Slug)
	}
	if m.Title != "" {
		t.Fatalf("Title = %q, want empty", m.Title)
	}
}

func TestMapMediaRefs(t *testing.T) {
	t.Parallel()

	m := Map(docFromJSON(t, `{
		"metadata": {"stockId": "S1"},
		"media": {"images": [
			{"url": "https://img.example/a.jpg"},
			"https://img.example/b.jpg",
			{"url": "  "},
			{"width": 800}
		]}
	}`))

	want := []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}
	if len(m.MediaRefs) != len(want) {
		t.Fatalf("MediaRefs = %v, want %v", m.MediaRefs, want)
	}
	for i := range want {
		if m.MediaRefs[i] != want[i] {
			t.Fatalf("MediaRefs[%d] = %q, want %q", i, m.MediaRefs[i], want[i])
		}
	}
}

func TestMapStatusAndLifecycle(t *testing.T) {
	t.Parallel()

	m := Map(docFromJSON(t, `{
		"metadata": {"stockId": "S1", "lifecycleState": "ACTIVE"},
		"status": "NOT_PUBLISHED"
	}`))
	if m.Status != StatusNotPublished {
		t.Fatalf("Status = %q, want %q", m.Status, StatusNotPublished)
	}
	if m.Attrs.Lifecycle != "ACTIVE" {
		t.Fatalf("Lifecycle = %q, want %q", m.Attrs.Lifecycle, "ACTIVE")
	}
}

func TestAttrsJSONRoundTrips(t *testing.T) {
	t.Parallel()

	m := Map(docFromJSON(t, `{
		"metadata": {"stockId": "S9"},
		"vehicle": {"make": "Audi", "model": "A4", "year": 2019, "mileage": 42000},
		"pricing": {"price": {"amount": 18500, "currency": "EUR"}},
		"advertiser": {"name": "Main St Motors", "address": {"city": "Springfield"}}
	}`))

	var attrs Attributes
	if err := json.Unmarshal(m.AttrsJSON(), &attrs); err != nil {
		t.Fatalf("unmarshal attrs: %v", err)
	}
	if attrs.StockNumber != "S9" || attrs.Make != "Audi" || attrs.Mileage != 42000 {
		t.Fatalf("attrs round trip mismatch: %+v", attrs)
	}
	if attrs.Price != 18500 || attrs.Currency != "EUR" {
		t.Fatalf("pricing mismatch: %+v", attrs)
	}
	if attrs.DealerName != "Main St Motors" || attrs.DealerCity != "Springfield" {
		t.Fatalf("dealer mismatch: %+v", attrs)
	}
}

func TestKebab(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"Golf GTI", "golf-gti"},
		{"  C-Class  ", "c-class"},
		{"A4 / Avant", "a4-avant"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := kebab(tt.raw); got != tt.want {
			t.Fatalf("kebab(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
