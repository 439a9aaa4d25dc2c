package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newVendorTestServer(t *testing.T, handler http.HandlerFunc) *VendorClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewVendorClient(srv.URL, "test-key")
}

func TestVendorSubmitTaskIDLocations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"top level id", `{"id":"t-1"}`},
		{"top level task_id", `{"task_id":"t-1"}`},
		{"nested data.task_id", `{"data":{"task_id":"t-1"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newVendorTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/generate" || r.Method != http.MethodPost {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("auth header = %q", got)
				}
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(tc.body))
			})
			id, err := c.Submit(context.Background(), GenSpec{
				Kind: TaskKindImage, Prompt: "p", AspectRatio: "16:9",
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if id != "t-1" {
				t.Errorf("task id = %q", id)
			}
		})
	}
}

func TestVendorSubmitExtensionCarriesSourceTask(t *testing.T) {
	var captured map[string]interface{}
	c := newVendorTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"task_id":"t-ext"}`))
	})

	_, err := c.Submit(context.Background(), GenSpec{
		Kind: TaskKindExtension, Prompt: "p", SourceTaskID: "t-prev", DurationSec: 8, Seed: 42,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	params, _ := captured["parameters"].(map[string]interface{})
	if params["source_task_id"] != "t-prev" {
		t.Errorf("source_task_id = %v", params["source_task_id"])
	}
	if params["seed"] != float64(42) {
		t.Errorf("seed = %v", params["seed"])
	}

	// 没有前置片段的续写在出网前就被拒绝
	if _, err := c.Submit(context.Background(), GenSpec{Kind: TaskKindExtension, Prompt: "p"}); err == nil {
		t.Fatal("expected error for extension without source task")
	}
}

func TestVendorSubmitRejectsServerError(t *testing.T) {
	c := newVendorTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.Submit(context.Background(), GenSpec{Kind: TaskKindImage, Prompt: "p"}); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestVendorPollResultShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want GenResult
	}{
		{
			"direct video_url",
			`{"status":"finished","video_url":"https://v.example/a.mp4"}`,
			GenResult{State: GenStateComplete, Url: "https://v.example/a.mp4"},
		},
		{
			"nested data resources",
			`{"state":"succeeded","data":{"status":"succeeded","resources":[{"url":"https://v.example/b.mp4"}]}}`,
			GenResult{State: GenStateComplete, Url: "https://v.example/b.mp4"},
		},
		{
			"result object",
			`{"status":"completed","result":{"video_url":"https://v.example/c.mp4"}}`,
			GenResult{State: GenStateComplete, Url: "https://v.example/c.mp4"},
		},
		{
			"result as json encoded string",
			`{"status":"success","result":"{\"url\":\"https://v.example/d.mp4\"}"}`,
			GenResult{State: GenStateComplete, Url: "https://v.example/d.mp4"},
		},
		{
			"output bare url string",
			`{"status":"done","output":"https://v.example/e.mp4"}`,
			GenResult{State: GenStateComplete, Url: "https://v.example/e.mp4"},
		},
		{
			"success without url stays pending",
			`{"status":"success","result":[]}`,
			GenResult{State: GenStatePending},
		},
		{
			"running",
			`{"status":"running"}`,
			GenResult{State: GenStatePending},
		},
		{
			"failure with message",
			`{"status":"failed","error":"content policy violation"}`,
			GenResult{State: GenStateFailed, ErrMsg: "content policy violation"},
		},
		{
			"failure without message gets default",
			`{"state":"error"}`,
			GenResult{State: GenStateFailed, ErrMsg: "generation service reported failure"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newVendorTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/tasks/t-1" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.Write([]byte(tc.body))
			})
			got, err := c.Poll(context.Background(), "t-1")
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestVendorPollServerErrorIsTransient(t *testing.T) {
	c := newVendorTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.Poll(context.Background(), "t-1"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestNormalizeStatus(t *testing.T) {
	complete := []string{"finished", "Success", "SUCCEEDED", "completed", "complete", "done"}
	for _, s := range complete {
		if normalizeStatus(s) != GenStateComplete {
			t.Errorf("%q not normalized to complete", s)
		}
	}
	if normalizeStatus("failed") != GenStateFailed || normalizeStatus("Error") != GenStateFailed {
		t.Error("failure statuses not normalized")
	}
	for _, s := range []string{"", "queued", "running", "processing"} {
		if normalizeStatus(s) != GenStatePending {
			t.Errorf("%q not normalized to pending", s)
		}
	}
}
