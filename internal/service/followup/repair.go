package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/wardrockay/followup-engine/internal/bizday"
	"github.com/wardrockay/followup-engine/internal/domain"
)

// RepairResult reports how many records a repair operation touched.
type RepairResult struct {
	Affected int      `json:"affected"`
	DraftIDs []string `json:"draft_ids,omitempty"`
	TaskIDs  []string `json:"task_ids,omitempty"`
}

// Repairer runs the operator-driven drift-correction operations of §4.6.
// Every operation except ShiftFollowups is idempotent; each ShiftFollowups
// call moves the tasks again.
type Repairer struct {
	repo Repository
}

// NewRepairer creates a Repairer backed by repo.
func NewRepairer(repo Repository) *Repairer {
	return &Repairer{repo: repo}
}

// SyncTaskIDsToDrafts finds drafts that already have followup tasks in the
// store but an empty followup_ids field, and populates it with the ids of
// the draft's tasks still in status=scheduled. Tasks in any other status
// are not included, and a draft none of whose tasks is still scheduled is
// left unchanged.
func (r *Repairer) SyncTaskIDsToDrafts(ctx context.Context) (*RepairResult, error) {
	drafts, err := r.repo.ListDraftsMissingFollowupIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing drafts missing followup_ids: %w", err)
	}

	result := &RepairResult{DraftIDs: []string{}}
	for _, draft := range drafts {
		tasks, err := r.repo.ListScheduledFollowupsForDraft(ctx, draft.DraftID)
		if err != nil {
			return nil, fmt.Errorf("listing tasks for draft %s: %w", draft.DraftID, err)
		}
		if len(tasks) == 0 {
			continue
		}
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.TaskID)
		}
		if err := r.repo.UpdateDraftFollowups(ctx, draft.DraftID, ids, draft.FollowupsScheduled); err != nil {
			return nil, fmt.Errorf("updating draft %s: %w", draft.DraftID, err)
		}
		result.DraftIDs = append(result.DraftIDs, draft.DraftID)
	}
	result.Affected = len(result.DraftIDs)
	return result, nil
}

// SetMissingScheduledFlag finds drafts with a populated followup_ids field
// but followups_scheduled still false, and sets the flag.
func (r *Repairer) SetMissingScheduledFlag(ctx context.Context) (*RepairResult, error) {
	drafts, err := r.repo.ListDraftsMissingScheduledFlag(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing drafts missing followups_scheduled: %w", err)
	}

	result := &RepairResult{DraftIDs: []string{}}
	for _, draft := range drafts {
		if err := r.repo.UpdateDraftFollowups(ctx, draft.DraftID, draft.FollowupIDs, true); err != nil {
			return nil, fmt.Errorf("updating draft %s: %w", draft.DraftID, err)
		}
		result.DraftIDs = append(result.DraftIDs, draft.DraftID)
	}
	result.Affected = len(result.DraftIDs)
	return result, nil
}

// ShiftResultItem is one task's outcome within a shift-followups batch.
type ShiftResultItem struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"` // "shifted" or "skipped"
	Reason       string `json:"reason,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
}

// ShiftResult summarizes a shift-followups batch run.
type ShiftResult struct {
	Shifted int               `json:"shifted"`
	Skipped int               `json:"skipped"`
	Results []ShiftResultItem `json:"results"`
}

// ShiftFollowups moves a batch of non-terminal tasks' scheduled_for by
// businessDays (positive or negative) each, computed from each task's
// current scheduled_for via bizday.AddBusinessDays. A missing or terminal
// task is skipped rather than failing the whole batch.
func (r *Repairer) ShiftFollowups(ctx context.Context, taskIDs []string, businessDays int) (*ShiftResult, error) {
	result := &ShiftResult{Results: make([]ShiftResultItem, 0, len(taskIDs))}

	for _, taskID := range taskIDs {
		task, err := r.repo.GetFollowup(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("loading task %s: %w", taskID, err)
		}
		if task == nil {
			result.Skipped++
			result.Results = append(result.Results, ShiftResultItem{TaskID: taskID, Status: "skipped", Reason: "task not found"})
			continue
		}
		if task.IsTerminal() {
			result.Skipped++
			result.Results = append(result.Results, ShiftResultItem{
				TaskID: taskID,
				Status: "skipped",
				Reason: fmt.Sprintf("task is in terminal state %s", task.Status),
			})
			continue
		}

		task.ScheduledFor = bizday.AddBusinessDays(task.ScheduledFor, businessDays)
		if err := r.repo.UpdateFollowup(ctx, task); err != nil {
			return nil, fmt.Errorf("persisting shifted task %s: %w", taskID, err)
		}
		result.Shifted++
		result.Results = append(result.Results, ShiftResultItem{
			TaskID:       taskID,
			Status:       "shifted",
			ScheduledFor: task.ScheduledFor.Format(time.RFC3339),
		})
	}

	return result, nil
}

// MarkDoneError records why a single task could not be force-transitioned
// to done within a mark-followups-done batch.
type MarkDoneError struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// MarkDoneResult summarizes a mark-followups-done batch run.
type MarkDoneResult struct {
	Updated  int             `json:"updated"`
	NotFound int             `json:"not_found"`
	Errors   []MarkDoneError `json:"errors"`
}

// MarkFollowupsDone force-transitions a list of tasks to done, for when a
// followup was produced through another path. This is an explicit operator
// override: unlike the other repair operations, it is permitted to move a
// task out of a terminal state (failed, cancelled) into done, not just a
// non-terminal one.
func (r *Repairer) MarkFollowupsDone(ctx context.Context, taskIDs []string) (*MarkDoneResult, error) {
	tasks, err := r.repo.GetFollowupsByIDs(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	found := make(map[string]*domain.FollowupTask, len(tasks))
	for _, t := range tasks {
		found[t.TaskID] = t
	}

	result := &MarkDoneResult{Errors: []MarkDoneError{}}
	for _, taskID := range taskIDs {
		task, ok := found[taskID]
		if !ok {
			result.NotFound++
			continue
		}
		if task.Status == domain.FollowupDone {
			result.Updated++
			continue
		}

		now := time.Now().UTC()
		ok, err := r.repo.TransitionFollowupIfStatus(ctx, task.TaskID, task.Status, domain.FollowupDone, func(t *domain.FollowupTask) {
			t.ProcessedAt = &now
		})
		if err != nil {
			result.Errors = append(result.Errors, MarkDoneError{TaskID: task.TaskID, Error: err.Error()})
			continue
		}
		if !ok {
			result.Errors = append(result.Errors, MarkDoneError{TaskID: task.TaskID, Error: "task status changed concurrently"})
			continue
		}
		result.Updated++
	}
	return result, nil
}
