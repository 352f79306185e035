package domain

import "time"

// FollowupStatus is the lifecycle state of a scheduled followup task.
type FollowupStatus string

const (
	FollowupScheduled FollowupStatus = "scheduled"
	FollowupDone      FollowupStatus = "done"
	FollowupFailed    FollowupStatus = "failed"
	FollowupCancelled FollowupStatus = "cancelled"
)

// BusinessDaysAfterForNumber is the fixed pairing between a followup's
// ordinal position and its offset from the initial send, invariant 1 of the
// followup lifecycle.
var BusinessDaysAfterForNumber = map[int]int{
	1: 3,
	2: 7,
	3: 10,
	4: 180,
}

// FollowupSchedule lists the ordinals the scheduler materializes, in order.
var FollowupSchedule = []int{1, 2, 3, 4}

// LongTermFollowupNumber is the ordinal of the 180-business-day task that
// the cancellation policy always keeps, even after a reply.
const LongTermFollowupNumber = 4

// FollowupTask is one scheduled followup attempt against an initial draft.
type FollowupTask struct {
	TaskID             string         `json:"task_id" dynamodbav:"task_id"`
	DraftID            string         `json:"draft_id" dynamodbav:"draft_id"`
	FollowupNumber     int            `json:"followup_number" dynamodbav:"followup_number"`
	BusinessDaysAfter  int            `json:"business_days_after" dynamodbav:"business_days_after"`
	ScheduledFor       time.Time      `json:"scheduled_for" dynamodbav:"scheduled_for"`
	Status             FollowupStatus `json:"status" dynamodbav:"status"`
	CreatedAt          time.Time      `json:"created_at" dynamodbav:"created_at"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty" dynamodbav:"processed_at,omitempty"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty" dynamodbav:"cancelled_at,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty" dynamodbav:"cancellation_reason,omitempty"`
	DraftIDCreated     string         `json:"draft_id_created,omitempty" dynamodbav:"draft_id_created,omitempty"`
}

// IsLongTerm reports whether this is the 180-business-day re-engagement
// task that survives a reply-triggered cancellation.
func (t *FollowupTask) IsLongTerm() bool {
	return t.FollowupNumber == LongTermFollowupNumber
}

// IsTerminal reports whether the task has left the scheduled state for a
// state that only an explicit operator action can move it out of.
func (t *FollowupTask) IsTerminal() bool {
	switch t.Status {
	case FollowupDone, FollowupFailed, FollowupCancelled:
		return true
	default:
		return false
	}
}
