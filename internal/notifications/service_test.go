package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldtag/internal/config"
	"fieldtag/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyIngestCompleted(context.Background(), "wave-1", 3, 0); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "ingest completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyIngestCompleted(context.Background(), "wave-1", 12, 0)
			},
			expectTitle:   "Fieldtag - Ingest Complete",
			expectMessage: "Ingested 12 entries into dataset wave-1",
			expectTags:    "fieldtag,ingest,completed",
		},
		{
			name: "ingest completed with warnings",
			notify: func(svc notifications.Service) error {
				return svc.NotifyIngestCompleted(context.Background(), "wave-1", 10, 2)
			},
			expectTitle:   "Fieldtag - Ingest Complete (with warnings)",
			expectMessage: "Ingested 10 entries into dataset wave-1, 2 warnings need review",
			expectTags:    "fieldtag,ingest,completed",
		},
		{
			name: "ingest failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyIngestFailed(context.Background(), "wave-1", "archive is not a valid zip")
			},
			expectTitle:    "Fieldtag - Ingest Failed",
			expectMessage:  "Ingest into dataset wave-1 failed: archive is not a valid zip",
			expectTags:     "fieldtag,ingest,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("disk full"), "reconciler")
			},
			expectTitle:    "Fieldtag - Error",
			expectMessage:  "Error with reconciler: disk full",
			expectTags:     "fieldtag,error,alert",
			expectPriority: "high",
		},
		{
			name: "test notification",
			notify: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Fieldtag - Test",
			expectMessage:  "Notification system test",
			expectTags:     "fieldtag,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Ingest = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Ingest = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyIngestCompleted(context.Background(), "wave-1", 1, 0); err != nil {
		t.Fatalf("expected suppressed ingest notification to return nil, got %v", err)
	}
	if err := svc.NotifyIngestFailed(context.Background(), "wave-1", "boom"); err != nil {
		t.Fatalf("expected suppressed ingest notification to return nil, got %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "daemon"); err != nil {
		t.Fatalf("expected suppressed error notification to return nil, got %v", err)
	}
}

func TestNtfyServiceReportsServerFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("topic is protected"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Ingest = true

	svc := notifications.NewService(&cfg)
	err := svc.NotifyIngestCompleted(context.Background(), "wave-1", 1, 0)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
