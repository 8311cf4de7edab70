package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/email"
)

// emailHandler sends one lifecycle notification for one envelope.
type emailHandler struct {
	name     string
	template string
	to       string
	vars     map[string]any
	sender   email.Sender
	renderer *email.TemplateService
	hctx     HandlerContext
}

func (h *emailHandler) Name() string { return h.name }

func (h *emailHandler) Handle(ctx context.Context) error {
	subject, body, err := h.renderer.Render(h.template, h.vars)
	if err != nil {
		return fmt.Errorf("handler %s: %w", h.name, err)
	}
	if err := h.sender.Send(ctx, email.Message{To: h.to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("handler %s: %w", h.name, err)
	}
	return nil
}

// NewUserEventRegistry wires the full event-to-handler map for user
// lifecycle events. PromotedToAdmin and EmailVerified carry no side effects
// and complete immediately.
func NewUserEventRegistry(sender email.Sender, renderer *email.TemplateService) *Registry {
	mail := func(name, template string) func(to string, vars map[string]any, hctx HandlerContext) Handler {
		return func(to string, vars map[string]any, hctx HandlerContext) Handler {
			return &emailHandler{
				name:     name,
				template: template,
				to:       to,
				vars:     vars,
				sender:   sender,
				renderer: renderer,
				hctx:     hctx,
			}
		}
	}

	welcome := mail("SendWelcomeEmail", email.TemplateWelcome)
	suspension := mail("SendSuspensionEmail", email.TemplateSuspension)
	unlock := mail("SendUnlockEmail", email.TemplateUnlock)
	deactivation := mail("SendDeactivationEmail", email.TemplateDeactivation)
	reactivation := mail("SendReactivationEmail", email.TemplateReactivation)
	usernameChange := mail("SendUsernameChangeEmail", email.TemplateUsernameChange)
	emailChange := mail("SendEmailChangeEmail", email.TemplateEmailChange)

	return NewRegistry(map[string]Factory{
		domain.EventTypeUserCreated: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserCreated](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{welcome(ev.Email, map[string]any{
				"username":      ev.Username,
				"registered_at": ev.RegisteredAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUserSuspended: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserSuspended](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{suspension(ev.Email, map[string]any{
				"username":     ev.Username,
				"reason":       ev.Reason,
				"suspended_at": ev.SuspendedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUserUnlocked: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserUnlocked](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{unlock(ev.Email, map[string]any{
				"username":    ev.Username,
				"unlocked_at": ev.UnlockedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUserDeactivated: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserDeactivated](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{deactivation(ev.Email, map[string]any{
				"username":       ev.Username,
				"deactivated_at": ev.DeactivatedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUserReactivated: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserReactivated](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{reactivation(ev.Email, map[string]any{
				"username":       ev.Username,
				"reactivated_at": ev.ReactivatedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUsernameChanged: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UsernameChanged](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{usernameChange(ev.Email, map[string]any{
				"old_username": ev.OldUsername,
				"new_username": ev.NewUsername,
				"changed_at":   ev.ChangedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		domain.EventTypeUserEmailChanged: func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error) {
			ev, err := decode[domain.UserEmailChanged](payload)
			if err != nil {
				return nil, err
			}
			return []Handler{emailChange(ev.NewEmail, map[string]any{
				"username":   ev.Username,
				"new_email":  ev.NewEmail,
				"changed_at": ev.ChangedAt.Format(time.RFC3339),
			}, hctx)}, nil
		},
		// No side effects; the envelopes complete on the next poll.
		domain.EventTypeUserPromotedToAdmin: func(json.RawMessage, HandlerContext) ([]Handler, error) {
			return nil, nil
		},
		domain.EventTypeUserEmailVerified: func(json.RawMessage, HandlerContext) ([]Handler, error) {
			return nil, nil
		},
	})
}
