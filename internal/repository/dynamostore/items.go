package dynamostore

import (
	"time"

	"github.com/wardrockay/followup-engine/internal/domain"
)

// draftItem mirrors domain.Draft for DynamoDB storage. Timestamps are
// stored as RFC3339 strings, following the teacher's AWSStorage convention
// (attributevalue has no native time.Time support).
type draftItem struct {
	DraftID            string   `dynamodbav:"draft_id"`
	Status             string   `dynamodbav:"status"`
	SentAt             string   `dynamodbav:"sent_at,omitempty"`
	To                 string   `dynamodbav:"to"`
	ExternalID         string   `dynamodbav:"x_external_id"`
	VersionGroupID     string   `dynamodbav:"version_group_id"`
	FollowupNumber     int      `dynamodbav:"followup_number"`
	HasReply           bool     `dynamodbav:"has_reply"`
	InitialDraftID     string   `dynamodbav:"initial_draft_id,omitempty"`
	ThreadID           string   `dynamodbav:"thread_id,omitempty"`
	MessageID          string   `dynamodbav:"message_id,omitempty"`
	OriginalSubject    string   `dynamodbav:"original_subject,omitempty"`
	Subject            string   `dynamodbav:"subject,omitempty"`
	Body               string   `dynamodbav:"body,omitempty"`
	FollowupIDs        []string `dynamodbav:"followup_ids"`
	FollowupsScheduled bool     `dynamodbav:"followups_scheduled"`
	NoFollowup         bool     `dynamodbav:"no_followup"`
}

func fromDraft(d *domain.Draft) draftItem {
	item := draftItem{
		DraftID:            d.DraftID,
		Status:             string(d.Status),
		To:                 d.To,
		ExternalID:         d.ExternalID,
		VersionGroupID:     d.VersionGroupID,
		FollowupNumber:     d.FollowupNumber,
		HasReply:           d.HasReply,
		InitialDraftID:     d.InitialDraftID,
		ThreadID:           d.ThreadID,
		MessageID:          d.MessageID,
		OriginalSubject:    d.OriginalSubject,
		Subject:            d.Subject,
		Body:               d.Body,
		FollowupIDs:        d.FollowupIDs,
		FollowupsScheduled: d.FollowupsScheduled,
		NoFollowup:         d.NoFollowup,
	}
	if d.SentAt != nil {
		item.SentAt = d.SentAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (item draftItem) toDomain() *domain.Draft {
	d := &domain.Draft{
		DraftID:            item.DraftID,
		Status:             domain.DraftStatus(item.Status),
		To:                 item.To,
		ExternalID:         item.ExternalID,
		VersionGroupID:     item.VersionGroupID,
		FollowupNumber:     item.FollowupNumber,
		HasReply:           item.HasReply,
		InitialDraftID:     item.InitialDraftID,
		ThreadID:           item.ThreadID,
		MessageID:          item.MessageID,
		OriginalSubject:    item.OriginalSubject,
		Subject:            item.Subject,
		Body:               item.Body,
		FollowupIDs:        item.FollowupIDs,
		FollowupsScheduled: item.FollowupsScheduled,
		NoFollowup:         item.NoFollowup,
	}
	if item.SentAt != "" {
		if t, err := time.Parse(time.RFC3339, item.SentAt); err == nil {
			d.SentAt = &t
		}
	}
	return d
}

// followupItem mirrors domain.FollowupTask for DynamoDB storage.
type followupItem struct {
	TaskID             string `dynamodbav:"task_id"`
	DraftID            string `dynamodbav:"draft_id"`
	FollowupNumber     int    `dynamodbav:"followup_number"`
	BusinessDaysAfter  int    `dynamodbav:"business_days_after"`
	ScheduledFor       string `dynamodbav:"scheduled_for"`
	Status             string `dynamodbav:"status"`
	CreatedAt          string `dynamodbav:"created_at"`
	ProcessedAt        string `dynamodbav:"processed_at,omitempty"`
	CancelledAt        string `dynamodbav:"cancelled_at,omitempty"`
	ErrorMessage       string `dynamodbav:"error_message,omitempty"`
	CancellationReason string `dynamodbav:"cancellation_reason,omitempty"`
	DraftIDCreated     string `dynamodbav:"draft_id_created,omitempty"`
}

func fromFollowup(t *domain.FollowupTask) followupItem {
	item := followupItem{
		TaskID:             t.TaskID,
		DraftID:            t.DraftID,
		FollowupNumber:     t.FollowupNumber,
		BusinessDaysAfter:  t.BusinessDaysAfter,
		ScheduledFor:       t.ScheduledFor.UTC().Format(time.RFC3339),
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt.UTC().Format(time.RFC3339),
		ErrorMessage:       t.ErrorMessage,
		CancellationReason: t.CancellationReason,
		DraftIDCreated:     t.DraftIDCreated,
	}
	if t.ProcessedAt != nil {
		item.ProcessedAt = t.ProcessedAt.UTC().Format(time.RFC3339)
	}
	if t.CancelledAt != nil {
		item.CancelledAt = t.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (item followupItem) toDomain() *domain.FollowupTask {
	t := &domain.FollowupTask{
		TaskID:             item.TaskID,
		DraftID:            item.DraftID,
		FollowupNumber:     item.FollowupNumber,
		BusinessDaysAfter:  item.BusinessDaysAfter,
		Status:             domain.FollowupStatus(item.Status),
		ErrorMessage:       item.ErrorMessage,
		CancellationReason: item.CancellationReason,
		DraftIDCreated:     item.DraftIDCreated,
	}
	if v, err := time.Parse(time.RFC3339, item.ScheduledFor); err == nil {
		t.ScheduledFor = v
	}
	if v, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		t.CreatedAt = v
	}
	if item.ProcessedAt != "" {
		if v, err := time.Parse(time.RFC3339, item.ProcessedAt); err == nil {
			t.ProcessedAt = &v
		}
	}
	if item.CancelledAt != "" {
		if v, err := time.Parse(time.RFC3339, item.CancelledAt); err == nil {
			t.CancelledAt = &v
		}
	}
	return t
}
