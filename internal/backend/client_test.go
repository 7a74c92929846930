package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/jobsync/internal/shared"
	"golang.org/x/oauth2"
)

func TestClient(t *testing.T) {
	t.Run("ListJobs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/jobs" || r.Method != http.MethodGet {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.Write([]byte(`{"jobs":[{"id":"a","status":"running"},{"id":"b","status":"queued"}]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		jobs, err := client.ListJobs(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(jobs) != 2 || jobs[0].ID != "a" {
			t.Errorf("unexpected jobs %+v", jobs)
		}
	})

	t.Run("sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
				t.Errorf("authorization = %q", got)
			}
			w.Write([]byte(`{"jobs":[]}`))
		}))
		defer server.Close()

		tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sekrit"})
		client := NewClient(server.URL, server.Client(), tokens)
		if _, err := client.ListJobs(context.Background()); err != nil {
			t.Fatalf("list: %v", err)
		}
	})

	t.Run("404 maps to ErrJobNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		if _, err := client.GetJob(context.Background(), "missing"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("error body detail surfaces in the message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"bad selection"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		_, err := client.SubmitPlaylistSelection(context.Background(), "j1", []int{1})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("got %v", err)
		}
		if want := "bad selection"; !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	})

	t.Run("transport failures map to ErrTransport", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", nil, nil)
		if _, err := client.ListJobs(context.Background()); !errors.Is(err, shared.ErrTransport) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("CreateJob posts url and options", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]json.RawMessage
			json.NewDecoder(r.Body).Decode(&req)
			if string(req["url"]) != `"https://example.com/v"` {
				t.Errorf("url = %s", req["url"])
			}
			w.Write([]byte(`{"id":"new","status":"queued"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		job, err := client.CreateJob(context.Background(), CreateJobRequest{URL: "https://example.com/v"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if job.ID != "new" {
			t.Errorf("id = %q", job.ID)
		}
	})

	t.Run("DeleteJob defaults status to deleted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("method = %s", r.Method)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		resp, err := client.DeleteJob(context.Background(), "j1")
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if !resp.Deleted() {
			t.Error("empty delete response should count as deleted")
		}
	})

	t.Run("JobLogs forwards entry selector and since", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("entry_index") != "2" || q.Get("since") != "9" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"entries":[{"text":"line"}],"version":10,"since":9}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client(), nil)
		payload, err := client.JobLogs(context.Background(), "j1", EntrySelector{EntryIndex: 2}, 9)
		if err != nil {
			t.Fatalf("logs: %v", err)
		}
		if payload.Version != 10 || len(payload.Entries) != 1 {
			t.Errorf("unexpected payload %+v", payload)
		}
	})
}

func TestAvailabilitySource(t *testing.T) {
	t.Run("subscriber always observes the latest state", func(t *testing.T) {
		src := NewAvailabilitySource()
		ch := src.Subscribe()

		src.Set(AvailabilityUnpacking)
		src.Set(AvailabilityStarting)
		src.Set(AvailabilityRunning)

		// Intermediate transitions may be dropped but the newest must be
		// buffered.
		got := <-ch
		if got != AvailabilityRunning {
			t.Errorf("got %q, want running", got)
		}
		if !src.Get().Running() {
			t.Error("Get should report running")
		}
	})

	t.Run("setting the same state is a no-op", func(t *testing.T) {
		src := NewAvailabilitySource()
		ch := src.Subscribe()

		src.Set(AvailabilityRunning)
		<-ch
		src.Set(AvailabilityRunning)

		select {
		case got := <-ch:
			t.Errorf("unexpected notification %q", got)
		default:
		}
	})
}
