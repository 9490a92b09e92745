package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct{ to, subject, text, html string }

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, text, html})
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func body(t *testing.T, job EmailJob) []byte {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return b
}

func TestNormalize_NamedTemplate(t *testing.T) {
	job := EmailJob{To: "jane@college.edu", Template: "Forgot_Password"}
	job.Normalize()

	assert.Equal(t, TemplateUniversal, job.Template)
	assert.Equal(t, "forgot_password", job.Data["Type"])
	assert.Equal(t, "jane@college.edu", job.Data["Email"])
	assert.Equal(t, "jane@college.edu", job.Data["RecipientEmail"])
}

func TestRender(t *testing.T) {
	job := EmailJob{To: "jane@college.edu", Template: "password_changed", Data: map[string]any{"Name": "Jane"}}
	subject, text, html, err := job.Render()
	require.NoError(t, err)
	assert.Equal(t, "Your password was changed", subject)
	assert.Contains(t, text, "jane@college.edu")
	assert.Contains(t, html, "Jane")

	raw := EmailJob{To: "x@y.z", Subject: "hi", Text: "plain"}
	subject, text, html, err = raw.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "plain", ""}, []string{subject, text, html})

	_, _, _, err = (&EmailJob{To: "x@y.z", Template: "newsletter"}).Render()
	assert.EqualError(t, err, "unknown template newsletter")
}

func TestWorker_Handle(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{}
	w := &Worker{Sender: s, Logger: quietLogger()}

	out := w.Handle(ctx, body(t, NewTemplateJob("jane@college.edu", map[string]any{"Type": "forgot_password", "ResetURL": "http://x/reset#t"})))
	assert.Equal(t, Ack, out)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "Reset your password", s.sent[0].subject)
	assert.Contains(t, s.sent[0].text, "http://x/reset#t")

	assert.Equal(t, Drop, w.Handle(ctx, []byte("{not json")))
	assert.Equal(t, Drop, w.Handle(ctx, body(t, EmailJob{Template: TemplateUniversal})))
	assert.Equal(t, Drop, w.Handle(ctx, body(t, EmailJob{To: "a@b.c", Template: "newsletter"})))

	s.err = errors.New("mailgun down")
	assert.Equal(t, Requeue, w.Handle(ctx, body(t, EmailJob{To: "a@b.c", Subject: "s", Text: "t"})))
}
