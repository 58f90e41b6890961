package archive

import (
	"context"
	"testing"
	"time"
)

func TestNewUploaderDisabledWithoutEndpoint(t *testing.T) {
	uploader, err := NewUploader(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uploader != nil {
		t.Fatal("expected nil uploader when endpoint is empty")
	}
	if uploader.Enabled() {
		t.Error("nil uploader should report disabled")
	}
	if err := uploader.Upload(context.Background(), "reports/x.pdf", []byte("data"), "application/pdf"); err != nil {
		t.Errorf("nil uploader Upload should be a no-op, got %v", err)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	got := ObjectName("brd_1", "Sprint-42.pdf", now)
	want := "reports/2026/03/brd_1/Sprint-42.pdf"
	if got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}
