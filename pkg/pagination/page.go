package pagination

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/upmind-client-export/pkg/normalize"
)

// recordKeys are the object keys that may hold a page of records, highest
// priority first.
var recordKeys = []string{"results", "clients", "data"}

// ShapeError reports an upstream payload that matches none of the expected
// page layouts.
type ShapeError struct {
	URL    string
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected clients payload shape from %s: %s", e.URL, e.Reason)
}

// Page is one decoded response.
type Page struct {
	Records []normalize.Record

	// Next is the raw next-page link, "" when pagination ends.
	Next string
}

// DecodePage parses a response body into a Page.
func DecodePage(url string, body []byte) (*Page, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ShapeError{URL: url, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	switch v := payload.(type) {
	case []any:
		// A bare list is the complete result set.
		records, err := toRecords(url, v)
		if err != nil {
			return nil, err
		}
		return &Page{Records: records}, nil

	case map[string]any:
		items, err := pageItems(url, v)
		if err != nil {
			return nil, err
		}
		records, err := toRecords(url, items)
		if err != nil {
			return nil, err
		}
		return &Page{Records: records, Next: nextLink(v)}, nil

	default:
		return nil, &ShapeError{URL: url, Reason: fmt.Sprintf("top-level value is %s", jsonKind(payload))}
	}
}

// pageItems returns the list stored under the first present record key.
func pageItems(url string, obj map[string]any) ([]any, error) {
	for _, key := range recordKeys {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}

		items, ok := value.([]any)
		if !ok {
			return nil, &ShapeError{
				URL:    url,
				Reason: fmt.Sprintf("%q is %s, want list", key, jsonKind(value)),
			}
		}
		return items, nil
	}
	return nil, nil
}

func toRecords(url string, items []any) ([]normalize.Record, error) {
	records := make([]normalize.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ShapeError{
				URL:    url,
				Reason: fmt.Sprintf("record %d is %s, want object", i, jsonKind(item)),
			}
		}
		records = append(records, normalize.Record(obj))
	}
	return records, nil
}

// nextLink prefers a top-level "next" and falls back to "links.next".
func nextLink(obj map[string]any) string {
	if next, ok := obj["next"].(string); ok && next != "" {
		return next
	}
	if links, ok := obj["links"].(map[string]any); ok {
		if next, ok := links["next"].(string); ok && next != "" {
			return next
		}
	}
	return ""
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
