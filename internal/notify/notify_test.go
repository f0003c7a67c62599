package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/NaN-tic/csvimport/internal/core"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &LogNotifier{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	err := n.Send(context.Background(), "ops@example.com", "Import report", "3 created")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "run report") {
		t.Errorf("log output missing report line: %q", out)
	}
	if !strings.Contains(out, "ops@example.com") {
		t.Errorf("log output missing recipient: %q", out)
	}
}

func TestGatewayNotifier_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewGateway(srv.URL, "csvimport@localhost", 5*time.Second)
	err := n.Send(context.Background(), "ops@example.com", "Import report: partners", "3 created")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := map[string]string{
		"from":    "csvimport@localhost",
		"to":      "ops@example.com",
		"subject": "Import report: partners",
		"body":    "3 created",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestGatewayNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay refused", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewGateway(srv.URL, "csvimport@localhost", 5*time.Second)
	err := n.Send(context.Background(), "ops@example.com", "subject", "body")
	if err == nil {
		t.Fatal("Send() against failing gateway should return an error")
	}
	if !strings.Contains(err.Error(), "notification gateway") {
		t.Errorf("error = %v, want notification gateway", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status 502", err)
	}
}

func TestGatewayNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewGateway(srv.URL, "csvimport@localhost", time.Second)
	err := n.Send(context.Background(), "ops@example.com", "subject", "body")
	if err == nil {
		t.Fatal("Send() against closed gateway should return an error")
	}
	if !strings.Contains(err.Error(), "post notification") {
		t.Errorf("error = %v, want post notification", err)
	}
}

type captureNotifier struct {
	to      string
	subject string
	body    string
}

func (c *captureNotifier) Send(ctx context.Context, to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestRunReporter(t *testing.T) {
	capture := &captureNotifier{}
	reporter := &RunReporter{Notifier: capture, To: "ops@example.com"}

	profile := core.NewProfile("partners", "res.partner")
	run := &core.Run{
		ID:       uuid.New(),
		Profile:  "partners",
		Filename: "partners.csv",
		State:    core.RunStateDone,
		Created:  3,
	}

	if err := reporter.NotifyRun(context.Background(), profile, run); err != nil {
		t.Fatalf("NotifyRun() error = %v", err)
	}
	if capture.to != "ops@example.com" {
		t.Errorf("to = %q, want ops@example.com", capture.to)
	}
	want := "Import report: partners, file partners.csv, done"
	if capture.subject != want {
		t.Errorf("subject = %q, want %q", capture.subject, want)
	}
	if capture.body != run.Report() {
		t.Errorf("body = %q, want run report", capture.body)
	}
}
