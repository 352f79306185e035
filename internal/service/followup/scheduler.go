package followup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wardrockay/followup-engine/internal/bizday"
	"github.com/wardrockay/followup-engine/internal/domain"
)

// ScheduleResult is the outcome of scheduling followups for one draft.
type ScheduleResult struct {
	ScheduledCount int      `json:"scheduled_count"`
	TaskIDs        []string `json:"task_ids"`
	SkippedReason  string   `json:"skipped_reason,omitempty"`
}

// BulkScheduleItem is one draft's outcome within a bulk scheduling run.
type BulkScheduleItem struct {
	DraftID        string   `json:"draft_id"`
	ScheduledCount int      `json:"scheduled_count"`
	TaskIDs        []string `json:"task_ids,omitempty"`
	SkippedReason  string   `json:"skipped_reason,omitempty"`
}

// BulkScheduleResult summarizes a schedule_all_sent_drafts run.
type BulkScheduleResult struct {
	Processed int                `json:"processed"`
	Results   []BulkScheduleItem `json:"results"`
}

// Scheduler materializes the fixed followup schedule for a sent draft.
type Scheduler struct {
	repo Repository
}

// NewScheduler creates a Scheduler backed by repo.
func NewScheduler(repo Repository) *Scheduler {
	return &Scheduler{repo: repo}
}

// ScheduleForDraft computes and persists the four followup tasks for
// draftID, per spec §4.2. It is idempotent: a second call on an
// already-scheduled draft is a no-op.
func (s *Scheduler) ScheduleForDraft(ctx context.Context, draftID string) (*ScheduleResult, error) {
	draft, err := s.repo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	if draft.Status != domain.DraftSent {
		return nil, ErrDraftNotSent
	}
	if draft.SentAt == nil {
		return nil, ErrMissingSentAt
	}
	if !draft.EligibleForScheduling() {
		return &ScheduleResult{SkippedReason: "draft is opted out or is itself a followup"}, nil
	}

	exists, err := s.repo.ExistsFollowupsForDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("checking existing followups: %w", err)
	}
	if exists {
		return &ScheduleResult{ScheduledCount: 0, SkippedReason: "already scheduled"}, nil
	}

	tasks := make([]*domain.FollowupTask, 0, len(domain.FollowupSchedule))
	taskIDs := make([]string, 0, len(domain.FollowupSchedule))
	for _, number := range domain.FollowupSchedule {
		businessDays := domain.BusinessDaysAfterForNumber[number]
		task := &domain.FollowupTask{
			TaskID:            uuid.NewString(),
			DraftID:           draftID,
			FollowupNumber:    number,
			BusinessDaysAfter: businessDays,
			ScheduledFor:      bizday.AddBusinessDays(*draft.SentAt, businessDays),
			Status:            domain.FollowupScheduled,
			CreatedAt:         *draft.SentAt,
		}
		tasks = append(tasks, task)
		taskIDs = append(taskIDs, task.TaskID)
	}

	if err := s.repo.CreateFollowupBatch(ctx, tasks); err != nil {
		return nil, fmt.Errorf("persisting followup batch: %w", err)
	}

	// The task batch and the draft update together form the scheduling
	// commit. If this second write fails, invariant 5 has drifted; the
	// repair operations in §4.6 (SyncTaskIDsToDrafts,
	// SetMissingScheduledFlag) converge it back on the next run.
	if err := s.repo.UpdateDraftFollowups(ctx, draftID, taskIDs, true); err != nil {
		return nil, fmt.Errorf("updating draft after scheduling commit: %w", err)
	}

	return &ScheduleResult{ScheduledCount: len(taskIDs), TaskIDs: taskIDs}, nil
}

// ScheduleAllSentDrafts iterates every eligible initial sent draft and
// applies ScheduleForDraft, continuing past per-draft failures and
// recording them as a skipped_reason rather than aborting the run.
func (s *Scheduler) ScheduleAllSentDrafts(ctx context.Context) (*BulkScheduleResult, error) {
	drafts, err := s.repo.ListSentDraftsEligibleForScheduling(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing eligible drafts: %w", err)
	}

	results := make([]BulkScheduleItem, 0, len(drafts))
	for _, draft := range drafts {
		result, err := s.ScheduleForDraft(ctx, draft.DraftID)
		if err != nil {
			results = append(results, BulkScheduleItem{
				DraftID:       draft.DraftID,
				SkippedReason: err.Error(),
			})
			continue
		}
		results = append(results, BulkScheduleItem{
			DraftID:        draft.DraftID,
			ScheduledCount: result.ScheduledCount,
			TaskIDs:        result.TaskIDs,
			SkippedReason:  result.SkippedReason,
		})
	}

	return &BulkScheduleResult{Processed: len(results), Results: results}, nil
}
