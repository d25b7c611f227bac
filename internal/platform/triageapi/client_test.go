package triageapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, zerolog.Nop())
}

func TestLoadDashboard_SortsCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/triage/nurse/dashboard/enc-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"encounter_id": "enc-1",
			"live_state": null,
			"question_events": [
				{"id": "q-none", "encounter_id": "enc-1", "question_sequence": null},
				{"id": "q-5", "encounter_id": "enc-1", "question_sequence": 5},
				{"id": "q-2", "encounter_id": "enc-1", "question_sequence": 2}
			],
			"tier_summaries": [
				{"id": "t3", "encounter_id": "enc-1", "tier": 3, "summary_schema_version": "1", "render_text": ""},
				{"id": "t1", "encounter_id": "enc-1", "tier": 1, "summary_schema_version": "1", "render_text": ""}
			],
			"final_summary": null,
			"stream_url": "/triage/nurse/stream/enc-1"
		}`))
	}))
	defer srv.Close()

	d, err := newTestClient(srv.URL).LoadDashboard(context.Background(), "enc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"q-2", "q-5", "q-none"}
	for i, id := range want {
		if d.QuestionEvents[i].ID != id {
			t.Errorf("question order[%d]: want %s, got %s", i, id, d.QuestionEvents[i].ID)
		}
	}
	if d.TierSummaries[0].Tier != 1 || d.TierSummaries[1].Tier != 3 {
		t.Errorf("tier summaries not sorted: %+v", d.TierSummaries)
	}
}

func TestLoadDashboard_NilCollectionsBecomeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"encounter_id": "enc-1", "stream_url": ""}`))
	}))
	defer srv.Close()

	d, err := newTestClient(srv.URL).LoadDashboard(context.Background(), "enc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.QuestionEvents == nil || d.TierSummaries == nil {
		t.Error("collections should be empty, not nil")
	}
}

func TestLoadDashboard_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "encounter not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).LoadDashboard(context.Background(), "missing")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", se.StatusCode)
	}
}

func TestLoadDashboard_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!doctype html><html><body>dev server</body></html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).LoadDashboard(context.Background(), "enc-1")
	var me *MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedResponseError, got %T: %v", err, err)
	}
	if !me.LooksLikeHTML {
		t.Error("HTML body should be flagged as LooksLikeHTML")
	}
}

func TestLoadDashboard_TransportError(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).LoadDashboard(context.Background(), "enc-1")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}
