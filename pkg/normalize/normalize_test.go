package normalize

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, raw string) Record {
	t.Helper()

	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Failed to decode %s: %v", raw, err)
	}
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Row
	}{
		{
			name:     "no known fields",
			raw:      `{"id": 12, "created_at": "2024-01-01"}`,
			expected: Row{},
		},
		{
			name:     "empty object",
			raw:      `{}`,
			expected: Row{},
		},
		{
			name:     "name falls through empty to full_name",
			raw:      `{"name": "", "full_name": " Acme Corp "}`,
			expected: Row{Name: "Acme Corp"},
		},
		{
			name:     "whitespace-only name is empty",
			raw:      `{"name": "   ", "company_name": "Initech"}`,
			expected: Row{Name: "Initech", Company: "Initech"},
		},
		{
			name:     "company used as last name candidate",
			raw:      `{"company": "Globex"}`,
			expected: Row{Name: "Globex", Company: "Globex"},
		},
		{
			name:     "company preferred over company_name",
			raw:      `{"company": "Globex", "company_name": "Globex Ltd"}`,
			expected: Row{Name: "Globex Ltd", Company: "Globex"},
		},
		{
			name:     "email from primary contact",
			raw:      `{"email": "", "primary_contact": {"email": " jane@example.com ", "phone": "555-0100"}}`,
			expected: Row{Email: "jane@example.com", Phone: "555-0100"},
		},
		{
			name:     "email from contact when primary contact is empty",
			raw:      `{"primary_contact": {"email": ""}, "contact": {"email": "ops@example.com"}}`,
			expected: Row{Email: "ops@example.com"},
		},
		{
			name:     "primary contact not an object",
			raw:      `{"email": "", "primary_contact": "not-an-object"}`,
			expected: Row{},
		},
		{
			name:     "contact is a list",
			raw:      `{"contact": [{"email": "a@example.com"}]}`,
			expected: Row{},
		},
		{
			name:     "contact is null",
			raw:      `{"contact": null, "phone": "555-1234"}`,
			expected: Row{Phone: "555-1234"},
		},
		{
			name:     "numeric and boolean values are not stringified",
			raw:      `{"name": 42, "phone": 5551234, "source": true, "notes": ["a"]}`,
			expected: Row{},
		},
		{
			name:     "source and notes fallbacks",
			raw:      `{"lead_source": "referral", "note": "  VIP  "}`,
			expected: Row{Source: "referral", NotesSummary: "VIP"},
		},
		{
			name: "full record",
			raw: `{
				"name": "Jane Doe",
				"company": "Acme",
				"email": "jane@acme.test",
				"phone": "+44 20 7946 0000",
				"source": "web",
				"notes": "prefers email"
			}`,
			expected: Row{
				Name:         "Jane Doe",
				Company:      "Acme",
				Email:        "jane@acme.test",
				Phone:        "+44 20 7946 0000",
				Source:       "web",
				NotesSummary: "prefers email",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decode(t, tt.raw))
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_NilRecord(t *testing.T) {
	if got := Normalize(nil); !got.IsEmpty() {
		t.Errorf("Normalize(nil) = %+v, want empty row", got)
	}
}

func TestPathLookup(t *testing.T) {
	r := Record{
		"primary_contact": map[string]any{
			"email": "  a@example.com",
			"meta":  map[string]any{"tag": "vip"},
		},
		"count": 3,
	}

	tests := []struct {
		path     Path
		expected string
	}{
		{Path{"primary_contact", "email"}, "a@example.com"},
		{Path{"primary_contact", "meta", "tag"}, "vip"},
		{Path{"primary_contact", "missing"}, ""},
		{Path{"count"}, ""},
		{Path{"count", "nested"}, ""},
		{Path{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path.String(), func(t *testing.T) {
			if got := tt.path.Lookup(r); got != tt.expected {
				t.Errorf("Lookup(%s) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestChainResolve_FirstNonEmptyWins(t *testing.T) {
	chain := Chain{{"a"}, {"b"}, {"c"}}

	r := Record{"a": " ", "b": "second", "c": "third"}
	if got := chain.Resolve(r); got != "second" {
		t.Errorf("Resolve() = %q, want %q", got, "second")
	}

	if got := chain.Resolve(Record{}); got != "" {
		t.Errorf("Resolve() on empty record = %q, want empty", got)
	}
}
