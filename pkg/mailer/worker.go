package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome tells the consumer what to do with a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Drop
	Requeue
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Drop:
		return "drop"
	default:
		return "requeue"
	}
}

// Worker turns queued EmailJobs into sent mail.
type Worker struct {
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
}

// Handle processes one message body. Malformed jobs and unknown templates are
// dropped; send failures are requeued.
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.Logger.WithError(err).Warn("bad email job")
		return Drop
	}
	if job.To == "" {
		w.Logger.Warn("email job without recipient")
		return Drop
	}

	subject, text, html, err := job.Render()
	if err != nil {
		var unknown *UnknownTemplateError
		if !errors.As(err, &unknown) {
			w.Logger.WithError(err).WithField("template", job.Template).Error("render failed")
		} else {
			w.Logger.WithField("template", unknown.Name).Warn("unknown template")
		}
		return Drop
	}

	timeout := w.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := w.Sender.Send(sctx, job.To, subject, text, html); err != nil {
		w.Logger.WithError(err).WithField("to", job.To).Warn("send failed, requeueing")
		return Requeue
	}
	w.Logger.WithFields(logrus.Fields{"to": job.To, "type": job.Data["Type"]}).Info("email sent")
	return Ack
}
