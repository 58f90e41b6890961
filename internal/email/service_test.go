package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderInvitationTemplate(t *testing.T) {
	data := InvitationData{
		AppName:     "TeamBeat",
		InviterName: "Alex",
		SeriesName:  "Platform Retro",
		SeriesURL:   "https://example.com/series/srs_1",
	}

	html, err := renderTemplate(invitationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "TeamBeat") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Alex") {
		t.Error("template should contain inviter name")
	}
	if !strings.Contains(html, "Platform Retro") {
		t.Error("template should contain series name")
	}
	if !strings.Contains(html, "https://example.com/series/srs_1") {
		t.Error("template should contain series URL")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "TeamBeat",
		UserName: "Test User",
		ResetURL: "https://example.com/reset?token=xyz789",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "TeamBeat") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test User") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/reset?token=xyz789") {
		t.Error("template should contain reset URL")
	}
	if !strings.Contains(html, "1 hour") {
		t.Error("template should mention expiration time")
	}
}
