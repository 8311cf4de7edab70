package email

import (
	"strings"
	"testing"
)

func TestRenderLifecycleTemplates(t *testing.T) {
	ts := NewTemplateService()

	tests := []struct {
		name     string
		template string
		vars     map[string]any
		wantSubj string
		wantBody []string
	}{
		{
			name:     "welcome",
			template: TemplateWelcome,
			vars:     map[string]any{"username": "alice", "registered_at": "2025-06-01T12:00:00Z"},
			wantSubj: "Welcome, alice!",
			wantBody: []string{"alice", "2025-06-01T12:00:00Z"},
		},
		{
			name:     "suspension",
			template: TemplateSuspension,
			vars:     map[string]any{"username": "alice", "reason": "Violation", "suspended_at": "2025-06-01T12:00:00Z"},
			wantSubj: "Your account has been Suspended",
			wantBody: []string{"Violation"},
		},
		{
			name:     "unlock",
			template: TemplateUnlock,
			vars:     map[string]any{"username": "alice", "unlocked_at": "2025-06-01T12:00:00Z"},
			wantSubj: "Your account suspension has been lifted",
			wantBody: []string{"alice", "verify"},
		},
		{
			name:     "username change",
			template: TemplateUsernameChange,
			vars:     map[string]any{"old_username": "alice", "new_username": "alicia", "changed_at": "2025-06-01T12:00:00Z"},
			wantSubj: "Your username has changed",
			wantBody: []string{"alice", "alicia"},
		},
		{
			name:     "email change",
			template: TemplateEmailChange,
			vars:     map[string]any{"username": "alice", "new_email": "new@x.io", "changed_at": "2025-06-01T12:00:00Z"},
			wantSubj: "Confirm your new email address",
			wantBody: []string{"new@x.io"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body, err := ts.Render(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if subject != tt.wantSubj {
				t.Errorf("subject = %q, want %q", subject, tt.wantSubj)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body %q missing %q", body, want)
				}
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	ts := NewTemplateService()
	if _, _, err := ts.Render("no_such_template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRenderCachesParsedTemplates(t *testing.T) {
	ts := NewTemplateService()
	for i := 0; i < 2; i++ {
		if _, _, err := ts.Render(TemplateWelcome, map[string]any{"username": "alice"}); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.cache) != 1 {
		t.Errorf("cache size = %d, want 1", len(ts.cache))
	}
}
