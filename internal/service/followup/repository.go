package followup

import (
	"context"
	"time"

	"github.com/wardrockay/followup-engine/internal/domain"
)

// Repository is the persistence boundary for drafts and followup tasks.
// Concrete implementations (internal/repository/dynamostore) must honor:
//   - CreateFollowupBatch is atomic: either all tasks are written or none.
//   - TransitionFollowupIfStatus is a compare-and-set keyed on the task's
//     current status, so of two overlapping processor ticks only one
//     records a terminal state for a task. The processor applies it after
//     the composer call, so both ticks may still invoke the composer for
//     the same task.
type Repository interface {
	// GetDraft returns the draft by id, or (nil, nil) when it does not exist.
	GetDraft(ctx context.Context, draftID string) (*domain.Draft, error)

	// UpdateDraftFollowups sets followup_ids and followups_scheduled on a
	// draft after a successful scheduling commit.
	UpdateDraftFollowups(ctx context.Context, draftID string, followupIDs []string, scheduled bool) error

	// ListSentDraftsEligibleForScheduling returns initial (followup_number
	// = 0), non-opt-out drafts with status=sent, for the bulk scheduling
	// operation.
	ListSentDraftsEligibleForScheduling(ctx context.Context) ([]*domain.Draft, error)

	// ListSentDraftHistory returns sent drafts sharing externalID with
	// followup_number < belowFollowupNumber, ordered by followup_number
	// ascending — the prior-email history for a composer request.
	ListSentDraftHistory(ctx context.Context, externalID string, belowFollowupNumber int) ([]*domain.Draft, error)

	// ListDraftsMissingFollowupIDs returns drafts with an empty
	// followup_ids field (repair op); the caller checks which of them have
	// followup tasks in the store.
	ListDraftsMissingFollowupIDs(ctx context.Context) ([]*domain.Draft, error)

	// ListDraftsMissingScheduledFlag returns drafts with non-empty
	// followup_ids but followups_scheduled=false (repair op).
	ListDraftsMissingScheduledFlag(ctx context.Context) ([]*domain.Draft, error)

	// ExistsFollowupsForDraft reports whether any followup task already
	// exists for draftID, making scheduling idempotent.
	ExistsFollowupsForDraft(ctx context.Context, draftID string) (bool, error)

	// CreateFollowupBatch persists a full set of followup tasks atomically.
	CreateFollowupBatch(ctx context.Context, tasks []*domain.FollowupTask) error

	// ListScheduledFollowupsForDraft returns tasks in status=scheduled for
	// draftID, for the cancellation policy.
	ListScheduledFollowupsForDraft(ctx context.Context, draftID string) ([]*domain.FollowupTask, error)

	// ListDueFollowups returns tasks with status=scheduled and
	// scheduled_for <= now.
	ListDueFollowups(ctx context.Context, now time.Time) ([]*domain.FollowupTask, error)

	// ListFailedFollowups returns tasks in status=failed, for the
	// operator-driven retry operation.
	ListFailedFollowups(ctx context.Context) ([]*domain.FollowupTask, error)

	// GetFollowup returns a single task by id, or (nil, nil) when it does
	// not exist.
	GetFollowup(ctx context.Context, taskID string) (*domain.FollowupTask, error)

	// GetFollowupsByIDs returns the tasks matching taskIDs; ids with no
	// matching task are simply omitted from the result.
	GetFollowupsByIDs(ctx context.Context, taskIDs []string) ([]*domain.FollowupTask, error)

	// TransitionFollowupIfStatus performs a conditional update: if the
	// task's stored status equals expected, mutate is applied and the
	// result (with status=target) is written; otherwise ok=false and
	// nothing is written. This is the compare-and-set building block for
	// every non-idempotent task state change.
	TransitionFollowupIfStatus(ctx context.Context, taskID string, expected, target domain.FollowupStatus, mutate func(*domain.FollowupTask)) (ok bool, err error)

	// UpdateFollowup persists an already-loaded task verbatim (used by the
	// shift repair operation, which is not a status transition).
	UpdateFollowup(ctx context.Context, task *domain.FollowupTask) error
}
