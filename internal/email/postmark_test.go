package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestSendLoginCode(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	if err := client.SendLoginCode("mor@example.com", "482917"); err != nil {
		t.Fatalf("send login code: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want test-token", gotToken)
	}
	if received.To != "mor@example.com" {
		t.Errorf("To = %q, want mor@example.com", received.To)
	}
	if !strings.Contains(received.TextBody, "482917") {
		t.Errorf("body does not contain the code: %q", received.TextBody)
	}
}

func TestSendRedemptionNotice(t *testing.T) {
	var received postmarkEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	if err := client.SendRedemptionNotice("mor@example.com", "Emma", "Biograftur", 10, 2); err != nil {
		t.Fatalf("send redemption notice: %v", err)
	}

	if !strings.Contains(received.Subject, "Emma") {
		t.Errorf("subject = %q, want child name", received.Subject)
	}
	for _, want := range []string{"Biograftur", "Stjerner brugt: 10", "Stjerner tilbage: 2"} {
		if !strings.Contains(received.TextBody, want) {
			t.Errorf("body missing %q: %q", want, received.TextBody)
		}
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	if err := client.SendLoginCode("mor@example.com", "482917"); err != nil {
		t.Fatalf("send after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")
	if err := client.SendLoginCode("mor@example.com", "482917"); err == nil {
		t.Error("expected error when server token missing")
	}
}
