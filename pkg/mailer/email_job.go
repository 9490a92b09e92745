package mailer

import (
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/campus-identity/pkg/mailer/templates"
)

// TemplateUniversal is the one template the worker renders; Data["Type"]
// selects the variant.
const TemplateUniversal = "universal"

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template+Data or raw Subject/Text/HTML is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewTemplateJob addresses a universal-template email to to.
func NewTemplateJob(to string, data map[string]any) EmailJob {
	return EmailJob{To: to, Template: TemplateUniversal, Data: data}
}

// Normalize maps legacy named templates ("forgot_password", ...) onto the
// universal one and fills the recipient fields from To.
func (j *EmailJob) Normalize() {
	if j.Template == "" {
		return
	}
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	switch name := strings.ToLower(j.Template); name {
	case mailtpl.ForgotPassword, mailtpl.Welcome, mailtpl.PasswordChanged:
		if blank(j.Data["Type"]) {
			j.Data["Type"] = name
		}
		j.Template = TemplateUniversal
	}
	for _, k := range []string{"Email", "RecipientEmail"} {
		if blank(j.Data[k]) {
			j.Data[k] = j.To
		}
	}
}

// Render produces the message parts. Raw jobs pass through unchanged.
func (j *EmailJob) Render() (subject, text, html string, err error) {
	if j.Template == "" {
		return j.Subject, j.Text, j.HTML, nil
	}
	j.Normalize()
	if !strings.EqualFold(j.Template, TemplateUniversal) {
		return "", "", "", &UnknownTemplateError{Name: j.Template}
	}
	return mailtpl.Render(j.Data)
}

type UnknownTemplateError struct{ Name string }

func (e *UnknownTemplateError) Error() string { return "unknown template " + e.Name }

func blank(v any) bool {
	return v == nil || fmt.Sprint(v) == ""
}
