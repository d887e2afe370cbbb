package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

func TestWebhookPublish(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	changes, err := structdiff.Compare(
		structdiff.NewMapping().Set("price", structdiff.Number(10)),
		structdiff.NewMapping().Set("price", structdiff.Number(12)),
		structdiff.Options{},
	)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	ev := Event{
		Target:   "shop",
		Revision: 3,
		Taken:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Stats:    structdiff.Summarize(changes),
		Changes:  changes,
	}
	if err := NewWebhook(srv.URL).Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if !strings.HasPrefix(gotContentType, "application/json") {
		t.Errorf("content type = %q, want application/json", gotContentType)
	}

	var payload struct {
		Target   string `json:"target"`
		Revision string `json:"revision"`
		Stats    struct {
			Total   int `json:"total"`
			Changed int `json:"changed"`
		} `json:"stats"`
		Changes []map[string]any `json:"changes"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v\nbody: %s", err, gotBody)
	}
	if payload.Target != "shop" {
		t.Errorf("target = %q", payload.Target)
	}
	if payload.Revision != "00000003" {
		t.Errorf("revision = %q", payload.Revision)
	}
	if payload.Stats.Total != 1 || payload.Stats.Changed != 1 {
		t.Errorf("stats = %+v", payload.Stats)
	}
	if len(payload.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(payload.Changes))
	}
	c := payload.Changes[0]
	if c["path"] != "price" || c["type"] != "changed" {
		t.Errorf("record = %v", c)
	}
	if c["before"] != float64(10) || c["after"] != float64(12) {
		t.Errorf("record values = %v", c)
	}
}

func TestWebhookRejectsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewWebhook(srv.URL).Publish(context.Background(), Event{Target: "shop"})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status mentioned", err)
	}
}
