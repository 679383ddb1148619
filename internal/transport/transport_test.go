package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRenderTwiML(t *testing.T) {
	out, err := RenderTwiML([]Reply{Text("Hi & welcome"), Media("pic", "https://cdn/a.jpg", "image")})
	if err != nil {
		t.Fatalf("RenderTwiML: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "<?xml") {
		t.Fatalf("missing xml header: %s", s)
	}
	for _, want := range []string{
		"<Response>",
		"<Message><Body>Hi &amp; welcome</Body></Message>",
		"<Message><Body>pic</Body><Media>https://cdn/a.jpg</Media></Message>",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("twiml missing %q:\n%s", want, s)
		}
	}

	empty, _ := RenderTwiML(nil)
	if !strings.Contains(string(empty), "<Response></Response>") {
		t.Fatalf("empty twiml = %s", empty)
	}
}

func TestTwilioSender_Send(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if u, p, _ := r.BasicAuth(); u != "AC1" || p != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := &TwilioSender{AccountSID: "AC1", AuthToken: "tok", From: "+14155238886", BaseURL: srv.URL}
	if err := s.Send(context.Background(), "+15550001", Media("look", "https://cdn/a.jpg", "image")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Get("From") != "whatsapp:+14155238886" || got.Get("To") != "whatsapp:+15550001" {
		t.Fatalf("addresses: %v", got)
	}
	if got.Get("Body") != "look" || got.Get("MediaUrl") != "https://cdn/a.jpg" {
		t.Fatalf("payload: %v", got)
	}

	s.AuthToken = "bad"
	if err := s.Send(context.Background(), "+1", Text("x")); err == nil {
		t.Fatalf("expected error on 401")
	}
	if err := (&TwilioSender{}).Send(context.Background(), "+1", Text("x")); err == nil {
		t.Fatalf("expected error without from number")
	}
}

func TestMetaSender_Send(t *testing.T) {
	var bodies []metaMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/PNID/messages" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var m metaMessage
		_ = json.Unmarshal(b, &m)
		bodies = append(bodies, m)
	}))
	defer srv.Close()

	s := &MetaSender{Token: "tok", PhoneNumberID: "PNID", BaseURL: srv.URL}
	ctx := context.Background()
	if err := s.Send(ctx, "+919876543210", Text("hello")); err != nil {
		t.Fatalf("Send text: %v", err)
	}
	if err := s.Send(ctx, "919876543210", Media("tour", "https://cdn/v.mp4", "video")); err != nil {
		t.Fatalf("Send video: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}
	if bodies[0].To != "919876543210" || bodies[0].Type != "text" || bodies[0].Text.Body != "hello" {
		t.Fatalf("text payload: %+v", bodies[0])
	}
	if bodies[1].Type != "video" || bodies[1].Video.Link != "https://cdn/v.mp4" || bodies[1].Video.Caption != "tour" {
		t.Fatalf("video payload: %+v", bodies[1])
	}

	s.Token = "wrong"
	if err := s.Send(ctx, "+1", Text("x")); err == nil {
		t.Fatalf("expected error on 400")
	}
}

type recordingSender struct {
	sent []Reply
	fail map[string]bool
}

func (r *recordingSender) Send(_ context.Context, _ string, rep Reply) error {
	if r.fail[rep.Text] {
		return errors.New("boom: " + rep.Text)
	}
	r.sent = append(r.sent, rep)
	return nil
}

func TestSendAll_ContinuesAfterFailure(t *testing.T) {
	rs := &recordingSender{fail: map[string]bool{"b": true}}
	err := SendAll(context.Background(), rs, "+1", []Reply{Text("a"), Text("b"), Text("c")})
	if err == nil || !strings.Contains(err.Error(), "boom: b") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(rs.sent) != 2 || rs.sent[1].Text != "c" {
		t.Fatalf("later replies should still be sent: %+v", rs.sent)
	}
	if err := SendAll(context.Background(), LogSender{}, "+1", []Reply{Textf("n=%d", 1)}); err != nil {
		t.Fatalf("LogSender: %v", err)
	}
}
