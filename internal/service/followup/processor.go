package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wardrockay/followup-engine/internal/domain"
	"github.com/wardrockay/followup-engine/internal/resilience"
)

// TaskOutcome is the result of processing one due (or retried) task.
type TaskOutcome struct {
	TaskID         string `json:"task_id"`
	DraftID        string `json:"draft_id"`
	Status         string `json:"status"`
	DraftIDCreated string `json:"draft_id_created,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ProcessResult summarizes one process_due_followups or
// retry_failed_followups run.
type ProcessResult struct {
	Processed    int           `json:"processed"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Results      []TaskOutcome `json:"results"`
}

// newProcessResult tallies success/failure counts from the per-task
// outcomes. A task counts as a failure only if it ended in failed or error;
// done, cancelled, and skipped outcomes all count toward success since none
// of them represent a processing failure.
func newProcessResult(outcomes []TaskOutcome) *ProcessResult {
	result := &ProcessResult{Processed: len(outcomes), Results: outcomes}
	for _, o := range outcomes {
		if o.Status == string(domain.FollowupFailed) || o.Status == "error" {
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
	}
	return result
}

// Processor fires due followup tasks: it resolves the prospect's current
// CRM record, gathers prior-email history, and invokes the composer,
// transitioning each task to a terminal state as it goes.
type Processor struct {
	repo        Repository
	crm         CRMClient
	composer    ComposerClient
	crmEnv      *resilience.Envelope
	composerEnv *resilience.Envelope
	logger      zerolog.Logger
}

// NewProcessor builds a Processor. crmEnv and composerEnv must be built
// from resilience.CRMDependencyConfig and resilience.ComposerDependencyConfig
// respectively, sharing the breaker registry used by the health checks.
func NewProcessor(repo Repository, crm CRMClient, composer ComposerClient, crmEnv, composerEnv *resilience.Envelope, logger zerolog.Logger) *Processor {
	return &Processor{
		repo:        repo,
		crm:         crm,
		composer:    composer,
		crmEnv:      crmEnv,
		composerEnv: composerEnv,
		logger:      logger.With().Str("component", "followup_processor").Logger(),
	}
}

// ProcessDueFollowups fires every task with status=scheduled and
// scheduled_for <= now, sequentially, per spec §5. now defaults to the
// current UTC time when zero.
func (p *Processor) ProcessDueFollowups(ctx context.Context, now time.Time) (*ProcessResult, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tasks, err := p.repo.ListDueFollowups(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listing due followups: %w", err)
	}

	outcomes := make([]TaskOutcome, 0, len(tasks))
	for _, task := range tasks {
		outcomes = append(outcomes, p.processOne(ctx, task))
	}
	return newProcessResult(outcomes), nil
}

// RetryFailedFollowups re-runs the per-task procedure for every task
// currently in status=failed, operator-driven.
func (p *Processor) RetryFailedFollowups(ctx context.Context) (*ProcessResult, error) {
	tasks, err := p.repo.ListFailedFollowups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing failed followups: %w", err)
	}

	outcomes := make([]TaskOutcome, 0, len(tasks))
	for _, task := range tasks {
		// A retry re-enters the pipeline from failed, not scheduled; the
		// compare-and-set below is keyed on the task's actual current
		// status so it still protects against a concurrent tick.
		outcomes = append(outcomes, p.runTask(ctx, task, domain.FollowupFailed))
	}
	return newProcessResult(outcomes), nil
}

func (p *Processor) processOne(ctx context.Context, task *domain.FollowupTask) TaskOutcome {
	return p.runTask(ctx, task, domain.FollowupScheduled)
}

// runTask executes the §4.4 per-task procedure. expectedStatus is the
// status the compare-and-set transitions check against, letting the same
// procedure serve both the due-task path (scheduled) and the manual retry
// path (failed).
func (p *Processor) runTask(ctx context.Context, task *domain.FollowupTask, expectedStatus domain.FollowupStatus) TaskOutcome {
	outcome := TaskOutcome{TaskID: task.TaskID, DraftID: task.DraftID}

	// a. Load the referenced draft.
	draft, err := p.repo.GetDraft(ctx, task.DraftID)
	if err != nil || draft == nil {
		return p.fail(ctx, task, expectedStatus, "draft_not_found", outcome)
	}

	// b. A reply arrived since scheduling (or since the last cancellation
	// sweep): cancel instead of sending.
	if draft.HasReply {
		ok, err := p.repo.TransitionFollowupIfStatus(ctx, task.TaskID, expectedStatus, domain.FollowupCancelled, func(t *domain.FollowupTask) {
			t.CancellationReason = ReasonProspectReplied
			t.CancelledAt = timePtr(time.Now().UTC())
		})
		if err != nil {
			outcome.Status = "error"
			outcome.Error = err.Error()
			return outcome
		}
		if !ok {
			outcome.Status = "skipped"
			outcome.Error = "task no longer in expected state"
			return outcome
		}
		outcome.Status = string(domain.FollowupCancelled)
		return outcome
	}

	// c. Resolve the prospect's current CRM record.
	record, err := p.lookupProspect(ctx, draft.ExternalID)
	if err != nil {
		return p.fail(ctx, task, expectedStatus, err.Error(), outcome)
	}
	if err := validateProspect(record); err != nil {
		return p.fail(ctx, task, expectedStatus, err.Error(), outcome)
	}

	// d. Collect prior-email history.
	priorDrafts, err := p.repo.ListSentDraftHistory(ctx, draft.ExternalID, task.FollowupNumber)
	if err != nil {
		return p.fail(ctx, task, expectedStatus, fmt.Sprintf("loading email history: %v", err), outcome)
	}
	history := make([]EmailHistoryItem, 0, len(priorDrafts))
	for _, d := range priorDrafts {
		history = append(history, EmailHistoryItem{Subject: d.Subject, Body: d.Body})
	}

	// e. Build the composer request.
	req := ComposerRequest{
		ExternalID:      draft.ExternalID,
		FollowupNumber:  task.FollowupNumber,
		VersionGroupID:  draft.VersionGroupID,
		Email:           record.Email,
		FirstName:       record.FirstName,
		LastName:        record.LastName,
		PartnerName:     record.PartnerName,
		Website:         record.Website,
		ThreadID:        draft.ThreadID,
		MessageID:       draft.MessageID,
		OriginalSubject: draft.OriginalSubject,
		EmailHistory:    history,
	}

	// f. Invoke the composer through the resilience envelope.
	resp, err := p.generateFollowup(ctx, req)
	if err != nil {
		return p.fail(ctx, task, expectedStatus, err.Error(), outcome)
	}

	now := time.Now().UTC()
	ok, err := p.repo.TransitionFollowupIfStatus(ctx, task.TaskID, expectedStatus, domain.FollowupDone, func(t *domain.FollowupTask) {
		t.ProcessedAt = &now
		t.DraftIDCreated = resp.DraftID
	})
	if err != nil {
		outcome.Status = "error"
		outcome.Error = err.Error()
		return outcome
	}
	if !ok {
		outcome.Status = "skipped"
		outcome.Error = "task no longer in expected state"
		return outcome
	}
	outcome.Status = string(domain.FollowupDone)
	outcome.DraftIDCreated = resp.DraftID
	return outcome
}

func (p *Processor) fail(ctx context.Context, task *domain.FollowupTask, expectedStatus domain.FollowupStatus, reason string, outcome TaskOutcome) TaskOutcome {
	ok, err := p.repo.TransitionFollowupIfStatus(ctx, task.TaskID, expectedStatus, domain.FollowupFailed, func(t *domain.FollowupTask) {
		t.ErrorMessage = reason
	})
	if err != nil {
		outcome.Status = "error"
		outcome.Error = err.Error()
		return outcome
	}
	if !ok {
		outcome.Status = "skipped"
		outcome.Error = "task no longer in expected state"
		return outcome
	}
	outcome.Status = string(domain.FollowupFailed)
	outcome.Error = reason
	return outcome
}

func (p *Processor) lookupProspect(ctx context.Context, externalID string) (*ProspectRecord, error) {
	var record *ProspectRecord
	err := p.crmEnv.Execute(ctx, func(ctx context.Context) error {
		r, err := p.crm.LookupProspect(ctx, externalID)
		if err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crm lookup failed: %w", err)
	}
	return record, nil
}

func (p *Processor) generateFollowup(ctx context.Context, req ComposerRequest) (*ComposerResponse, error) {
	var resp *ComposerResponse
	err := p.composerEnv.Execute(ctx, func(ctx context.Context) error {
		r, err := p.composer.GenerateFollowup(ctx, req)
		if err != nil {
			return err
		}
		if !r.Success {
			return NewUnretryableComposerFailure("composer reported failure")
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("composer call failed: %w", err)
	}
	return resp, nil
}

func validateProspect(r *ProspectRecord) error {
	if r == nil {
		return fmt.Errorf("crm record not found")
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("crm record has malformed email")
	}
	if r.FirstName == "" || r.LastName == "" || r.PartnerName == "" || r.Website == "" {
		return fmt.Errorf("crm record missing required fields")
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
