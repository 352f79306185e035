package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/wardrockay/followup-engine/internal/domain"
)

// ReasonProspectReplied is recorded on every task cancelled because the
// prospect replied before the task fired.
const ReasonProspectReplied = "prospect_replied"

// CancellationResult is the outcome of cancelling a draft's pending
// followups.
type CancellationResult struct {
	CancelledCount int `json:"cancelled_count"`
	KeptCount      int `json:"kept_count"`
}

// Canceller applies the reply-cancellation policy: every scheduled
// followup is cancelled except the long-term (J+180) task, which stays
// scheduled regardless of reply state.
type Canceller struct {
	repo Repository
}

// NewCanceller creates a Canceller backed by repo.
func NewCanceller(repo Repository) *Canceller {
	return &Canceller{repo: repo}
}

// CancelForDraft cancels every scheduled followup for draftID except the
// long-term task. It is idempotent: tasks already cancelled or done are
// left untouched, and a draft with nothing scheduled yields an empty,
// non-error result. An unknown draftID yields ErrDraftNotFound.
func (c *Canceller) CancelForDraft(ctx context.Context, draftID string) (*CancellationResult, error) {
	draft, err := c.repo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	tasks, err := c.repo.ListScheduledFollowupsForDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled followups: %w", err)
	}

	result := &CancellationResult{}
	for _, task := range tasks {
		if task.IsLongTerm() {
			result.KeptCount++
			continue
		}

		now := time.Now().UTC()
		ok, err := c.repo.TransitionFollowupIfStatus(ctx, task.TaskID, domain.FollowupScheduled, domain.FollowupCancelled, func(t *domain.FollowupTask) {
			t.CancellationReason = ReasonProspectReplied
			t.CancelledAt = &now
		})
		if err != nil {
			return nil, fmt.Errorf("cancelling task %s: %w", task.TaskID, err)
		}
		if !ok {
			// Already transitioned by a concurrent call (processor tick or
			// another cancellation request); not an error.
			continue
		}
		result.CancelledCount++
	}

	return result, nil
}
