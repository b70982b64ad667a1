package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"capacityreport/internal/config"

	"google.golang.org/api/option"
)

type fakeGoogle struct {
	mu            sync.Mutex
	calls         []string
	createdParent []string
	failValues    bool
	valueInput    string
}

func (f *fakeGoogle) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			var file struct {
				Name     string   `json:"name"`
				MimeType string   `json:"mimeType"`
				Parents  []string `json:"parents"`
			}
			if err := json.Unmarshal(body, &file); err != nil {
				t.Errorf("decode drive file: %v", err)
			}
			if file.MimeType != spreadsheetMimeType || file.Name != "CY22Q1 RHELBLD" {
				t.Errorf("unexpected drive file: %+v", file)
			}
			f.createdParent = file.Parents
			_, _ = w.Write([]byte(`{"id":"sheet-1","webViewLink":"https://docs.google.com/spreadsheets/d/sheet-1/edit"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/sheet-1:batchUpdate":
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/sheet-1/values:batchUpdate":
			if f.failValues {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad range"}}`))
				return
			}
			var req struct {
				ValueInputOption string `json:"valueInputOption"`
			}
			_ = json.Unmarshal(body, &req)
			f.valueInput = req.ValueInputOption
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/files/sheet-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestPublisher(t *testing.T, serverURL string) *Publisher {
	t.Helper()
	cfg, err := config.Prepare(config.Config{
		JiraURL:             "https://issues.example.com",
		JiraToken:           "pat-test",
		Teams:               []string{"RHELBLD"},
		Quarters:            map[string][2]string{"CY22Q1": {"2022-01-01", "2022-04-01"}},
		GoogleDriveFolderID: "folder-42",
	})
	if err != nil {
		t.Fatalf("prepare config: %v", err)
	}
	p, err := NewPublisher(context.Background(), cfg,
		option.WithEndpoint(serverURL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	return p
}

func TestPublishCreatesFillsAndFormats(t *testing.T) {
	fake := &fakeGoogle{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	doc := testDocument()

	url, err := newTestPublisher(t, server.URL).Publish(context.Background(), doc)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if url != "https://docs.google.com/spreadsheets/d/sheet-1/edit" {
		t.Fatalf("unexpected url: %q", url)
	}
	if len(fake.createdParent) != 1 || fake.createdParent[0] != "folder-42" {
		t.Fatalf("expected file in configured folder, got %v", fake.createdParent)
	}
	if fake.valueInput != "USER_ENTERED" {
		t.Fatalf("unexpected value input option: %q", fake.valueInput)
	}
	want := []string{
		"POST /files",
		"POST /v4/spreadsheets/sheet-1:batchUpdate",
		"POST /v4/spreadsheets/sheet-1/values:batchUpdate",
		"POST /v4/spreadsheets/sheet-1:batchUpdate",
	}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls:\n%v\nwant\n%v", fake.calls, want)
	}
}

func TestPublishDeletesFileOnFailure(t *testing.T) {
	fake := &fakeGoogle{failValues: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := newTestPublisher(t, server.URL).Publish(context.Background(), testDocument())
	if err == nil || !strings.Contains(err.Error(), "writing values") {
		t.Fatalf("expected values error, got %v", err)
	}
	last := fake.calls[len(fake.calls)-1]
	if last != "DELETE /files/sheet-1" {
		t.Fatalf("expected cleanup delete, got calls %v", fake.calls)
	}
}

func TestPublishRejectsBadDocumentBeforeCreating(t *testing.T) {
	fake := &fakeGoogle{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	doc := testDocument()
	doc.Sheets[0].Merges = []string{"not-a-range"}
	if _, err := newTestPublisher(t, server.URL).Publish(context.Background(), doc); err == nil {
		t.Fatal("expected error for malformed range")
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no API call expected, got %v", fake.calls)
	}
}
