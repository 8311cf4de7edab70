package email

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Template names for the lifecycle notifications the relay dispatches.
const (
	TemplateWelcome        = "welcome"
	TemplateSuspension     = "suspension"
	TemplateUnlock         = "unlock"
	TemplateDeactivation   = "deactivation"
	TemplateReactivation   = "reactivation"
	TemplateUsernameChange = "username_change"
	TemplateEmailChange    = "email_change"
)

type templateDef struct {
	subject string
	body    string
}

// Subjects and bodies are Liquid sources. Variables come from the decoded
// event payload (username, reason, timestamps).
var lifecycleTemplates = map[string]templateDef{
	TemplateWelcome: {
		subject: "Welcome, {{ username }}!",
		body: `<p>Hi {{ username }},</p>
<p>Your account was created on {{ registered_at }}. Verify your email address to unlock all features.</p>`,
	},
	TemplateSuspension: {
		subject: "Your account has been Suspended",
		body: `<p>Hi {{ username }},</p>
<p>Your account was suspended by an administrator on {{ suspended_at }}.</p>
<p>Reason: {{ reason }}</p>`,
	},
	TemplateUnlock: {
		subject: "Your account suspension has been lifted",
		body: `<p>Hi {{ username }},</p>
<p>Your account was unlocked on {{ unlocked_at }}. Please verify your email address again to fully reactivate it.</p>`,
	},
	TemplateDeactivation: {
		subject: "Your account has been deactivated",
		body: `<p>Hi {{ username }},</p>
<p>Your account was deactivated at your request on {{ deactivated_at }}. You can reactivate it by logging in.</p>`,
	},
	TemplateReactivation: {
		subject: "Welcome back, {{ username }}",
		body: `<p>Hi {{ username }},</p>
<p>Your account was reactivated on {{ reactivated_at }}. Please verify your email address to finish.</p>`,
	},
	TemplateUsernameChange: {
		subject: "Your username has changed",
		body: `<p>Hi {{ new_username }},</p>
<p>Your username was changed from {{ old_username }} to {{ new_username }} on {{ changed_at }}. If this wasn't you, contact support.</p>`,
	},
	TemplateEmailChange: {
		subject: "Confirm your new email address",
		body: `<p>Hi {{ username }},</p>
<p>Your account email was changed to {{ new_email }} on {{ changed_at }}. Please verify the new address.</p>`,
	},
}

// TemplateService renders lifecycle notification templates with Liquid,
// caching parsed templates per name.
type TemplateService struct {
	engine *liquid.Engine

	mu    sync.Mutex
	cache map[string]parsedTemplate
}

type parsedTemplate struct {
	subject *liquid.Template
	body    *liquid.Template
}

// NewTemplateService creates the template service.
func NewTemplateService() *TemplateService {
	return &TemplateService{
		engine: liquid.NewEngine(),
		cache:  make(map[string]parsedTemplate),
	}
}

// Render produces the subject and body for a named template. Unknown names
// and malformed variable sets are errors; the relay treats them as handler
// failures.
func (ts *TemplateService) Render(name string, vars map[string]any) (subject, body string, err error) {
	tpl, err := ts.parsed(name)
	if err != nil {
		return "", "", err
	}

	subjBytes, err := tpl.subject.Render(vars)
	if err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	bodyBytes, err := tpl.body.Render(vars)
	if err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return string(subjBytes), string(bodyBytes), nil
}

func (ts *TemplateService) parsed(name string) (parsedTemplate, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if tpl, ok := ts.cache[name]; ok {
		return tpl, nil
	}
	def, ok := lifecycleTemplates[name]
	if !ok {
		return parsedTemplate{}, fmt.Errorf("unknown email template %q", name)
	}

	subj, err := ts.engine.ParseString(def.subject)
	if err != nil {
		return parsedTemplate{}, fmt.Errorf("parse %s subject: %w", name, err)
	}
	body, err := ts.engine.ParseString(def.body)
	if err != nil {
		return parsedTemplate{}, fmt.Errorf("parse %s body: %w", name, err)
	}

	tpl := parsedTemplate{subject: subj, body: body}
	ts.cache[name] = tpl
	return tpl, nil
}
