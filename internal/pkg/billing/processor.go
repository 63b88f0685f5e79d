package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

// errClaimedBySelf reports that the dedup key is already held by the log
// being processed.
var errClaimedBySelf = errors.New("event already claimed by this log")

// archiveTimeout bounds the best-effort payload archive upload.
const archiveTimeout = 10 * time.Second

// Process runs the pipeline for one received log and writes its terminal
// status exactly once. Every failure, panics included, ends up on the log;
// nothing is returned to the caller but the outcome.
func (s *Service) Process(ctx context.Context, logID uint) (outcome Outcome) {
	start := s.now()
	provider := ""
	finalize := true

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] Panic while processing log %d: %v\n%s", logID, r, debug.Stack())
			outcome = Outcome{
				Status:    models.WebhookStatusError,
				ErrorKind: KindInternal,
				Message:   fmt.Sprintf("%s: panic: %v", KindInternal, r),
				EventKind: outcome.EventKind,
			}
		}
		if finalize {
			s.finish(logID, provider, outcome)
		}
		s.metrics.RecordProcessingDuration(provider, s.now().Sub(start))
	}()

	entry, err := s.repo.GetWebhookLog(ctx, logID)
	if err != nil {
		log.Errorf("[Webhook] Cannot load log %d: %v", logID, err)
		return outcomeFromError(wrapPipelineError(KindInternal, err), s.cfg.ProcessTimeout)
	}
	provider = entry.Source
	if entry.IsTerminal() {
		// Redelivered job for a log that already has its outcome.
		finalize = false
		return Outcome{Status: entry.Status}
	}

	s.archive(entry)

	ev, result, err := s.run(ctx, entry)
	if errors.Is(err, errClaimedBySelf) {
		// A concurrent run of the same log committed first and writes the outcome.
		finalize = false
		return Outcome{Status: models.WebhookStatusProcessed, EventKind: ev.EventKind}
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = &PipelineError{Kind: KindProcessingTimeout, Err: ctx.Err()}
		}
		result = outcomeFromError(err, s.cfg.ProcessTimeout)
	}
	result.EventKind = ev.EventKind
	return result
}

// run is the pipeline proper. It returns the processed outcome or a
// classified error.
func (s *Service) run(ctx context.Context, entry *models.WebhookLog) (PurchaseEvent, Outcome, error) {
	adapter, ok := s.normalizer.Adapter(entry.Source)
	if !ok {
		return PurchaseEvent{}, Outcome{}, newPipelineError(KindTransport, "no adapter for provider %q", entry.Source)
	}
	payload := entry.RawPayload

	sig := ParseCapturedSignature(entry.Signature)
	if err := s.verifier.Check(entry.Source, payload, sig, s.cfg.Secret(entry.Source), entry.CreatedAt); err != nil {
		return PurchaseEvent{}, Outcome{}, err
	}

	res, err := s.normalizer.Normalize(adapter.Provider(), payload)
	if err != nil {
		return PurchaseEvent{}, Outcome{}, wrapPipelineError(KindTransport, err)
	}
	ev := res.Event

	if err := s.repo.AnnotateWebhookLog(ctx, entry.ID, ev); err != nil {
		log.Warnf("[Webhook] Failed to annotate log %d: %v", entry.ID, err)
	}

	if !res.Complete() {
		return ev, Outcome{}, newPipelineError(KindExtraction, "missing %s", res.missingList())
	}
	if !ev.EventKind.Actionable() {
		return ev, Outcome{}, newPipelineError(KindStateTransition, "event %q carries no subscription change", ev.RawEventType)
	}

	var result Outcome
	err = s.repo.WithinTransaction(ctx, func(tx TxRepository) error {
		o, err := s.apply(tx, entry, ev)
		if err != nil {
			return err
		}
		result = o
		return nil
	})
	if err != nil {
		return ev, Outcome{}, err
	}
	return ev, result, nil
}

// apply runs inside the transaction: claim the dedup key, then resolve the
// account and write the transition. An error rolls everything back and
// frees the claim; no-ops commit the claim so redeliveries are skipped.
func (s *Service) apply(tx TxRepository, entry *models.WebhookLog, ev PurchaseEvent) (Outcome, error) {
	claimed, holder, err := tx.ClaimEvent(entry.Source, ev.TransactionID, ev.EventKind, entry.ID)
	if err != nil {
		return Outcome{}, wrapPipelineError(KindUserResolution, err)
	}
	if !claimed && holder == entry.ID {
		return Outcome{}, errClaimedBySelf
	}
	if !claimed {
		return Outcome{}, &PipelineError{
			Kind:        KindDuplicate,
			Err:         fmt.Errorf("%s %s %s already applied by log %d", entry.Source, ev.TransactionID, ev.EventKind, holder),
			DuplicateOf: holder,
		}
	}

	planType := ""
	if ev.EventKind.Grants() && !ev.IsLifetime {
		if ev.PlanIdentifier == "" {
			return Outcome{}, newPipelineError(KindStateTransition, "no plan identifier in %s event", ev.EventKind)
		}
		mapping, err := findMapping(tx, entry.Source, ev)
		if err != nil {
			return Outcome{}, wrapPipelineError(KindUserResolution, err)
		}
		if mapping == nil {
			return Outcome{}, newPipelineError(KindStateTransition, "plan %s of %s is not mapped", quoteAll(planCandidates(ev)), entry.Source)
		}
		planType = mapping.PlanType
	}

	res, err := s.resolver.Resolve(tx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if res.Resolution == ResolvedAbsent {
		return processedOutcome(nil, fmt.Sprintf("no account for %s, %s ignored", ev.Email, ev.EventKind)), nil
	}
	u := res.User

	t, err := s.machine.Next(u, ev, entry.Source, planType)
	if err != nil {
		return Outcome{}, err
	}

	if !t.Apply {
		if res.ProfileUpdated {
			if err := tx.SaveUser(u); err != nil {
				return Outcome{}, wrapPipelineError(KindUserResolution, err)
			}
		}
		log.Infof("[Webhook] Log %d: no-op for user %d: %s", entry.ID, u.ID, t.Reason)
		return processedOutcome(u, t.Reason), nil
	}

	t.ApplyTo(u)
	if err := tx.SaveUser(u); err != nil {
		return Outcome{}, wrapPipelineError(KindUserResolution, err)
	}

	if ev.EventKind.Grants() {
		snapshot, _ := json.Marshal(ev)
		if err := tx.AppendSubscription(&models.Subscription{
			UserID:         u.ID,
			Source:         entry.Source,
			TransactionID:  ev.TransactionID,
			EventKind:      string(ev.EventKind),
			PlanType:       t.PlanType,
			StartDate:      t.SubscriptionStartDate,
			ExpirationDate: t.ExpirationDate,
			LifetimeAccess: t.LifetimeAccess,
			WebhookLogID:   entry.ID,
			EventSnapshot:  datatypes.JSON(snapshot),
		}); err != nil {
			return Outcome{}, wrapPipelineError(KindUserResolution, err)
		}
	}

	log.Infof("[Webhook] Log %d: user %d %s -> %s (%s, %s)", entry.ID, u.ID, t.From, t.To, ev.EventKind, res.Resolution)
	return processedOutcome(u, ""), nil
}

// findMapping returns the active mapping of the first plan candidate that
// has one, or nil when none is mapped.
func findMapping(tx TxRepository, provider string, ev PurchaseEvent) (*models.ProductMapping, error) {
	for _, id := range planCandidates(ev) {
		m, err := tx.FindActiveMapping(provider, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, nil
}

func planCandidates(ev PurchaseEvent) []string {
	if len(ev.PlanCandidates) > 0 {
		return ev.PlanCandidates
	}
	return []string{ev.PlanIdentifier}
}

func quoteAll(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

// archive uploads the raw payload when an archiver is configured. Failures
// are logged and never affect processing.
func (s *Service) archive(entry *models.WebhookLog) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.archiver.Archive(ctx, entry); err != nil {
		log.Warnf("[Webhook] Failed to archive log %d: %v", entry.ID, err)
	}
}
