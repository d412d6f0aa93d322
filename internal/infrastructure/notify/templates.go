package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Message is a rendered notification
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type templateSource struct {
	subject string
	text    string
}

// Templates read from the notice payload. "link" points at the request or
// trip in the web app when a base URL is configured.
var templateSources = map[entity.NotificationKind]templateSource{
	entity.KindReviewAwaiting: {
		subject: `Travel request #{{.request_id}} is waiting for your review`,
		text: `Travel request #{{.request_id}} has reached you as {{.role}} and is now {{.status}}.
Please review it{{with .link}} at {{.}}{{end}}.`,
	},
	entity.KindAdminApprovalAwaiting: {
		subject: `Travel request #{{.request_id}} is waiting for your approval`,
		text: `Travel request #{{.request_id}} needs your sign-off as {{.role}}.
Please approve or deny it{{with .link}} at {{.}}{{end}}.`,
	},
	entity.KindChangesRequested: {
		subject: `Changes requested on travel request #{{.request_id}}`,
		text: `A reviewer sent travel request #{{.request_id}} back for changes.
{{with .comments}}Comments: {{.}}
{{end}}Update the request and resubmit it{{with .link}} at {{.}}{{end}}.`,
	},
	entity.KindStatusUpdate: {
		subject: `Travel request #{{.request_id}} is now {{.status}}`,
		text:    `The status of travel request #{{.request_id}} changed to {{.status}}.{{with .link}} Details: {{.}}{{end}}`,
	},
	entity.KindTripReviewAwaiting: {
		subject: `Trip "{{.trip_name}}" is waiting for your review`,
		text: `The trip "{{.trip_name}}" (#{{.trip_id}}) has reached you as {{.role}}.
Please review it{{with .link}} at {{.}}{{end}}.`,
	},
	entity.KindTripCostWarning: {
		subject: `Trip "{{.trip_name}}" has passed the cost threshold`,
		text: `The non-resident cost of trip "{{.trip_name}}" (#{{.trip_id}}) is {{printf "%.2f" .total_cost}}, at or above the {{printf "%.2f" .threshold}} threshold.{{with .link}}
Details: {{.}}{{end}}`,
	},
}

const htmlLayout = `<html><body>{{range .}}<p>{{.}}</p>{{end}}</body></html>`

type compiledTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
}

// Renderer turns notices into subject and bodies
type Renderer struct {
	baseURL   string
	templates map[entity.NotificationKind]compiledTemplate
	layout    *htmltemplate.Template
}

// NewRenderer compiles the message templates. baseURL may be empty.
func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		templates: make(map[entity.NotificationKind]compiledTemplate, len(templateSources)),
	}

	for kind, src := range templateSources {
		subject, err := texttemplate.New(kind.String() + ".subject").Option("missingkey=zero").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		text, err := texttemplate.New(kind.String() + ".text").Option("missingkey=zero").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", kind, err)
		}
		r.templates[kind] = compiledTemplate{subject: subject, text: text}
	}

	layout, err := htmltemplate.New("layout").Parse(htmlLayout)
	if err != nil {
		return nil, fmt.Errorf("parse html layout: %w", err)
	}
	r.layout = layout

	return r, nil
}

// Render produces the message for a notice kind
func (r *Renderer) Render(kind entity.NotificationKind, payload map[string]interface{}) (*Message, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", kind)
	}

	data := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	if link := r.link(payload); link != "" {
		data["link"] = link
	}

	var subject, text bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", kind, err)
	}

	var html bytes.Buffer
	if err := r.layout.Execute(&html, strings.Split(text.String(), "\n")); err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}

	return &Message{
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func (r *Renderer) link(payload map[string]interface{}) string {
	if r.baseURL == "" {
		return ""
	}
	if id, ok := payload["request_id"]; ok {
		return fmt.Sprintf("%s/requests/%v", r.baseURL, id)
	}
	if id, ok := payload["trip_id"]; ok {
		return fmt.Sprintf("%s/trips/%v", r.baseURL, id)
	}
	return ""
}
