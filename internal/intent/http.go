package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTTPClassifier posts the message text to a remote classification service
// and decodes its verdict.
//
// The request body is {"text": "..."}. The response carries "action" (a wire
// name such as "view_property"), "subject_id" (or its alias "property_id"),
// "filters" (city, bhk, min_price, max_price, page) and "recipient".
type HTTPClassifier struct {
	URL    string
	Client *http.Client
}

type classifyResponse struct {
	Action     string         `json:"action"`
	SubjectID  any            `json:"subject_id"`
	PropertyID any            `json:"property_id"`
	Filters    map[string]any `json:"filters"`
	Recipient  string         `json:"recipient"`
}

// Classify implements Classifier. Transport and status failures wrap
// ErrUnavailable.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Intent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Intent{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	in := Intent{
		Action:    ParseAction(out.Action),
		SubjectID: scalarString(out.SubjectID),
		Recipient: strings.TrimSpace(out.Recipient),
	}
	if in.SubjectID == "" {
		in.SubjectID = scalarString(out.PropertyID)
	}
	in.Filters = decodeFilters(out.Filters)
	return in, nil
}

func decodeFilters(m map[string]any) Filters {
	var f Filters
	if m == nil {
		return f
	}
	if v, ok := m["city"].(string); ok {
		f.City = strings.TrimSpace(v)
	}
	f.BHK = int(number(m["bhk"]))
	f.MinPrice = number(m["min_price"])
	f.MaxPrice = number(m["max_price"])
	if f.MaxPrice == 0 {
		f.MaxPrice = number(m["price"])
	}
	f.Page = int(number(m["page"]))
	return f
}

// scalarString renders a JSON string or number id as text.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if p, ok := parsePriceToken(strings.ToLower(strings.ReplaceAll(t, " ", ""))); ok {
			return p
		}
	}
	return 0
}
