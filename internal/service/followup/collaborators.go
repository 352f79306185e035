package followup

import "context"

// ProspectRecord is the CRM's current view of a prospect, looked up by
// x_external_id at processing time so the composer always operates on
// fresh contact data rather than whatever was true at send time.
type ProspectRecord struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	PartnerName string
	Website    string
	Function   string
	Description string
	ExternalID string
}

// CRMClient resolves a prospect's current record from the lead directory.
type CRMClient interface {
	LookupProspect(ctx context.Context, externalID string) (*ProspectRecord, error)
}

// EmailHistoryItem is one prior email in a conversation, contributed to the
// composer request so it can write a followup that reads as a continuation.
type EmailHistoryItem struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ComposerRequest describes the next followup the composer should generate
// and send.
type ComposerRequest struct {
	ExternalID      string             `json:"x_external_id"`
	FollowupNumber  int                `json:"followup_number"`
	VersionGroupID  string             `json:"version_group_id"`
	Email           string             `json:"email"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	PartnerName     string             `json:"partner_name"`
	Website         string             `json:"website"`
	ThreadID        string             `json:"thread_id,omitempty"`
	MessageID       string             `json:"message_id,omitempty"`
	OriginalSubject string             `json:"original_subject,omitempty"`
	EmailHistory    []EmailHistoryItem `json:"email_history"`
}

// ComposerResponse is the composer's reply: a new draft id on success.
type ComposerResponse struct {
	Success bool   `json:"success"`
	DraftID string `json:"draft_id,omitempty"`
}

// ComposerClient invokes the external mail-composition service.
type ComposerClient interface {
	GenerateFollowup(ctx context.Context, req ComposerRequest) (*ComposerResponse, error)
}
