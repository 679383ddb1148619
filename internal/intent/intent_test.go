package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		if got := ParseAction(a.String()); got != a {
			t.Fatalf("ParseAction(%q) = %v, want %v", a.String(), got, a)
		}
	}
	for _, s := range []string{"", "unknown", "fly_to_moon", "LIST"} {
		if got := ParseAction(s); got != ActionUnknown {
			t.Fatalf("ParseAction(%q) = %v, want unknown", s, got)
		}
	}
	if ParseAction("  View_Property ") != ActionViewItem {
		t.Fatalf("case/space should be ignored")
	}
	if len(Actions()) != 11 {
		t.Fatalf("Actions() = %d entries", len(Actions()))
	}
}

func TestParseEscape(t *testing.T) {
	cases := map[string]Escape{
		"done":     EscapeDone,
		" DONE ":   EscapeDone,
		"skip":     EscapeSkip,
		"Cancel":   EscapeCancel,
		"done now": EscapeNone,
		"":         EscapeNone,
	}
	for in, want := range cases {
		if got := ParseEscape(in); got != want {
			t.Fatalf("ParseEscape(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCommandClassifier(t *testing.T) {
	c := CommandClassifier{}
	tests := []struct {
		text string
		want Intent
	}{
		{"help", Intent{Action: ActionHelp}},
		{"HELP", Intent{Action: ActionHelp}},
		{"view 12", Intent{Action: ActionViewItem, SubjectID: "12"}},
		{"view [12]", Intent{Action: ActionViewItem, SubjectID: "12"}},
		{"view", Intent{Action: ActionViewItem}},
		{"edit 3", Intent{Action: ActionEditItem, SubjectID: "3"}},
		{"edit profile", Intent{Action: ActionEditProfile}},
		{"editprofile", Intent{Action: ActionEditProfile}},
		{"profile", Intent{Action: ActionProfile}},
		{"delete #7", Intent{Action: ActionDeleteItem, SubjectID: "7"}},
		{"activate 2", Intent{Action: ActionActivateItem, SubjectID: "2"}},
		{"disable 2", Intent{Action: ActionDisableItem, SubjectID: "2"}},
		{"share 4 +919800000000", Intent{Action: ActionShareItem, SubjectID: "4", Recipient: "+919800000000"}},
		{"list", Intent{Action: ActionListItems}},
		{"list 2", Intent{Action: ActionListItems, Filters: Filters{Page: 2}}},
		{"list pune", Intent{Action: ActionListItems, Filters: Filters{City: "pune"}}},
		{"list 2bhk in navi mumbai under 50k", Intent{Action: ActionListItems, Filters: Filters{City: "navi mumbai", BHK: 2, MaxPrice: 50000}}},
		{"list 3 bhk", Intent{Action: ActionListItems, Filters: Filters{BHK: 3}}},
		{"list pune <=50,000", Intent{Action: ActionListItems, Filters: Filters{City: "pune", MaxPrice: 50000}}},
		{"list 2bhk >= 1.5cr", Intent{Action: ActionListItems, Filters: Filters{BHK: 2, MinPrice: 15000000}}},
		{"list goa < 40k 2", Intent{Action: ActionListItems, Filters: Filters{City: "goa", MaxPrice: 40000, Page: 2}}},
		{"2BHK furnished flat in Pune for 45k", Intent{Action: ActionCreateItem}},
		{"hello there", Intent{}},
		{"   ", Intent{}},
	}
	for _, tc := range tests {
		got, err := c.Classify(context.Background(), tc.text)
		if err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Text string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Text {
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		case "show twelve":
			_, _ = w.Write([]byte(`{"action":"view_property","property_id":12}`))
		default:
			_, _ = w.Write([]byte(`{"action":"list_properties","filters":{"city":"Pune","bhk":2,"max_price":"50k","page":3}}`))
		}
	}))
	defer srv.Close()

	c := &HTTPClassifier{URL: srv.URL, Client: srv.Client()}

	in, err := c.Classify(context.Background(), "show twelve")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if in.Action != ActionViewItem || in.SubjectID != "12" {
		t.Fatalf("got %+v", in)
	}

	in, err = c.Classify(context.Background(), "2bhk in pune")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := Filters{City: "Pune", BHK: 2, MaxPrice: 50000, Page: 3}
	if in.Action != ActionListItems || in.Filters != want {
		t.Fatalf("got %+v", in)
	}

	if _, err := c.Classify(context.Background(), "boom"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestChain(t *testing.T) {
	failing := ClassifierFunc(func(context.Context, string) (Intent, error) {
		return Intent{}, ErrUnavailable
	})
	unknown := ClassifierFunc(func(context.Context, string) (Intent, error) {
		return Intent{}, nil
	})
	help := ClassifierFunc(func(context.Context, string) (Intent, error) {
		return Intent{Action: ActionHelp}, nil
	})

	in, err := Chain{failing, unknown, help}.Classify(context.Background(), "x")
	if err != nil || in.Action != ActionHelp {
		t.Fatalf("got %+v, %v", in, err)
	}

	in, err = Chain{failing, unknown}.Classify(context.Background(), "x")
	if err != nil || in.Action != ActionUnknown {
		t.Fatalf("answered-but-unknown: %+v, %v", in, err)
	}

	if _, err := (Chain{failing}).Classify(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("all failing: %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := ClassifierFunc(func(ctx context.Context, _ string) (Intent, error) {
		select {
		case <-ctx.Done():
			return Intent{}, ctx.Err()
		case <-time.After(time.Second):
			return Intent{Action: ActionHelp}, nil
		}
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Classify(context.Background(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if WithTimeout(slow, 0) == nil {
		t.Fatalf("zero timeout should return the classifier")
	}
}
