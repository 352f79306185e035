package domain

import "time"

// DraftStatus is the lifecycle state of an outbound email draft.
// The engine only ever reads drafts whose status is DraftSent; other
// values exist for the upstream sender's own bookkeeping.
type DraftStatus string

const (
	DraftDrafting DraftStatus = "drafting"
	DraftSent     DraftStatus = "sent"
	DraftCancelled DraftStatus = "cancelled"
)

// Draft is a persisted outbound email record, owned by an external sender.
// The engine reads every field but writes only FollowupIDs and
// FollowupsScheduled.
type Draft struct {
	DraftID           string      `json:"draft_id" dynamodbav:"draft_id"`
	Status            DraftStatus `json:"status" dynamodbav:"status"`
	SentAt            *time.Time  `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	To                string      `json:"to" dynamodbav:"to"`
	ExternalID        string      `json:"x_external_id" dynamodbav:"x_external_id"`
	VersionGroupID    string      `json:"version_group_id" dynamodbav:"version_group_id"`
	FollowupNumber    int         `json:"followup_number" dynamodbav:"followup_number"`
	HasReply          bool        `json:"has_reply" dynamodbav:"has_reply"`
	InitialDraftID    string      `json:"initial_draft_id,omitempty" dynamodbav:"initial_draft_id,omitempty"`
	ThreadID          string      `json:"thread_id,omitempty" dynamodbav:"thread_id,omitempty"`
	MessageID         string      `json:"message_id,omitempty" dynamodbav:"message_id,omitempty"`
	OriginalSubject   string      `json:"original_subject,omitempty" dynamodbav:"original_subject,omitempty"`
	Subject           string      `json:"subject,omitempty" dynamodbav:"subject,omitempty"`
	Body              string      `json:"body,omitempty" dynamodbav:"body,omitempty"`
	FollowupIDs       []string    `json:"followup_ids" dynamodbav:"followup_ids"`
	FollowupsScheduled bool       `json:"followups_scheduled" dynamodbav:"followups_scheduled"`
	NoFollowup        bool        `json:"no_followup" dynamodbav:"no_followup"`
}

// IsInitial reports whether this draft is the first email of a conversation
// (the only kind the scheduler ever acts on).
func (d *Draft) IsInitial() bool {
	return d.FollowupNumber == 0
}

// EligibleForScheduling reports whether the draft may have followups
// materialized for it, independent of whether that has already happened.
func (d *Draft) EligibleForScheduling() bool {
	return !d.NoFollowup && d.IsInitial()
}
