package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

// finishTimeout bounds the terminal log update, which runs on a fresh
// context so it still happens after the processing deadline expired.
const finishTimeout = 5 * time.Second

// Outcome is the terminal result of processing one delivery.
type Outcome struct {
	Status        string
	ErrorKind     ErrorKind
	Message       string
	DuplicateOfID *uint
	UserID        *uint
	EventKind     EventKind
}

func processedOutcome(u *models.User, message string) Outcome {
	o := Outcome{Status: models.WebhookStatusProcessed, Message: message}
	if u != nil && u.ID != 0 {
		id := u.ID
		o.UserID = &id
	}
	return o
}

// outcomeFromError maps a pipeline failure onto the log status: skipped for
// duplicates, error for everything else.
func outcomeFromError(err error, timeout time.Duration) Outcome {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Kind == KindDuplicate {
		o := Outcome{Status: models.WebhookStatusSkipped, ErrorKind: KindDuplicate, Message: pe.Error()}
		if pe.DuplicateOf != 0 {
			id := pe.DuplicateOf
			o.DuplicateOfID = &id
		}
		return o
	}

	kind := KindOf(err)
	msg := err.Error()
	if kind == KindProcessingTimeout {
		msg = fmt.Sprintf("%s: processing timed out after %s", KindProcessingTimeout, timeout)
	}
	return Outcome{Status: models.WebhookStatusError, ErrorKind: kind, Message: truncateString(msg, 2000)}
}

// finish writes the terminal status once. A log that is no longer received
// is left alone.
func (s *Service) finish(logID uint, provider string, o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	done, err := s.repo.FinishWebhookLog(ctx, logID, o)
	switch {
	case err != nil:
		log.Errorf("[Webhook] Failed to finish log %d as %s: %v", logID, o.Status, err)
		return
	case !done:
		log.Warnf("[Webhook] Log %d already finished, outcome %s dropped", logID, o.Status)
		return
	}

	s.metrics.RecordWebhookOutcome(provider, string(o.EventKind), o.Status)
	if o.Status == models.WebhookStatusError {
		s.metrics.RecordWebhookError(provider, string(o.ErrorKind))
		log.Errorf("[Webhook] Log %d (%s) failed: %s", logID, provider, o.Message)
		return
	}
	if o.Message != "" {
		log.Infof("[Webhook] Log %d (%s) %s: %s", logID, provider, o.Status, o.Message)
	} else {
		log.Infof("[Webhook] Log %d (%s) %s", logID, provider, o.Status)
	}
}
