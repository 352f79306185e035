package followup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wardrockay/followup-engine/internal/bizday"
	"github.com/wardrockay/followup-engine/internal/domain"
	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

// memRepo is an in-memory followup.Repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	drafts    map[string]*domain.Draft
	followups map[string]*domain.FollowupTask
}

func newMemRepo() *memRepo {
	return &memRepo{
		drafts:    make(map[string]*domain.Draft),
		followups: make(map[string]*domain.FollowupTask),
	}
}

func (m *memRepo) putDraft(d *domain.Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.drafts[cp.DraftID] = &cp
}

func (m *memRepo) GetDraft(_ context.Context, draftID string) (*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) UpdateDraftFollowups(_ context.Context, draftID string, followupIDs []string, scheduled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok {
		return followup.ErrDraftNotFound
	}
	d.FollowupIDs = followupIDs
	d.FollowupsScheduled = scheduled
	return nil
}

func (m *memRepo) ListSentDraftsEligibleForScheduling(_ context.Context) ([]*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Draft
	for _, d := range m.drafts {
		if d.Status == domain.DraftSent && d.EligibleForScheduling() {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListSentDraftHistory(_ context.Context, externalID string, belowFollowupNumber int) ([]*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Draft
	for _, d := range m.drafts {
		if d.ExternalID == externalID && d.Status == domain.DraftSent && d.FollowupNumber < belowFollowupNumber {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListDraftsMissingFollowupIDs(_ context.Context) ([]*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Draft
	for _, d := range m.drafts {
		if len(d.FollowupIDs) == 0 {
			for _, t := range m.followups {
				if t.DraftID == d.DraftID {
					cp := *d
					out = append(out, &cp)
					break
				}
			}
		}
	}
	return out, nil
}

func (m *memRepo) ListDraftsMissingScheduledFlag(_ context.Context) ([]*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Draft
	for _, d := range m.drafts {
		if len(d.FollowupIDs) > 0 && !d.FollowupsScheduled {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ExistsFollowupsForDraft(_ context.Context, draftID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.followups {
		if t.DraftID == draftID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CreateFollowupBatch(_ context.Context, tasks []*domain.FollowupTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		cp := *t
		m.followups[cp.TaskID] = &cp
	}
	return nil
}

func (m *memRepo) ListScheduledFollowupsForDraft(_ context.Context, draftID string) ([]*domain.FollowupTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FollowupTask
	for _, t := range m.followups {
		if t.DraftID == draftID && t.Status == domain.FollowupScheduled {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListDueFollowups(_ context.Context, now time.Time) ([]*domain.FollowupTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FollowupTask
	for _, t := range m.followups {
		if t.Status == domain.FollowupScheduled && !t.ScheduledFor.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListFailedFollowups(_ context.Context) ([]*domain.FollowupTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FollowupTask
	for _, t := range m.followups {
		if t.Status == domain.FollowupFailed {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) GetFollowup(_ context.Context, taskID string) (*domain.FollowupTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.followups[taskID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) GetFollowupsByIDs(_ context.Context, taskIDs []string) ([]*domain.FollowupTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FollowupTask
	for _, id := range taskIDs {
		if t, ok := m.followups[id]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) TransitionFollowupIfStatus(_ context.Context, taskID string, expected, target domain.FollowupStatus, mutate func(*domain.FollowupTask)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.followups[taskID]
	if !ok {
		return false, followup.ErrFollowupNotFound
	}
	if t.Status != expected {
		return false, nil
	}
	mutate(t)
	t.Status = target
	return true, nil
}

func (m *memRepo) UpdateFollowup(_ context.Context, task *domain.FollowupTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.followups[task.TaskID]; !ok {
		return followup.ErrFollowupNotFound
	}
	cp := *task
	m.followups[cp.TaskID] = &cp
	return nil
}

// fakeCRM and fakeComposer are scriptable collaborator fakes.

type fakeCRM struct {
	records map[string]*followup.ProspectRecord
	err     error
}

func (f *fakeCRM) LookupProspect(_ context.Context, externalID string) (*followup.ProspectRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[externalID]
	if !ok {
		return nil, nil
	}
	return r, nil
}

type fakeComposer struct {
	nextDraftID string
	err         error
	calls       []followup.ComposerRequest
	mu          sync.Mutex
}

func (f *fakeComposer) GenerateFollowup(_ context.Context, req followup.ComposerRequest) (*followup.ComposerResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &followup.ComposerResponse{Success: true, DraftID: f.nextDraftID}, nil
}

func newTestService(repo *memRepo, crm followup.CRMClient, composer followup.ComposerClient) *followup.Service {
	registry := resilience.NewRegistry(zerolog.Nop())
	return followup.New(repo, crm, composer, registry, zerolog.Nop())
}

func sentDraft(id, externalID string, followupNumber int, sentAt time.Time) *domain.Draft {
	return &domain.Draft{
		DraftID:        id,
		Status:         domain.DraftSent,
		SentAt:         &sentAt,
		ExternalID:     externalID,
		FollowupNumber: followupNumber,
		VersionGroupID: "vg-" + id,
	}
}

func TestScheduleForDraftHappyPath(t *testing.T) {
	repo := newMemRepo()
	sentAt := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC) // Monday
	repo.putDraft(sentDraft("draft-1", "ext-1", 0, sentAt))

	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})
	result, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ScheduledCount != 4 {
		t.Fatalf("expected 4 tasks, got %d", result.ScheduledCount)
	}

	draft, _ := repo.GetDraft(context.Background(), "draft-1")
	if !draft.FollowupsScheduled || len(draft.FollowupIDs) != 4 {
		t.Fatalf("draft not updated with followup commit: %+v", draft)
	}

	want := map[int]time.Time{
		1: bizday.AddBusinessDays(sentAt, 3),
		2: bizday.AddBusinessDays(sentAt, 7),
		3: bizday.AddBusinessDays(sentAt, 10),
		4: bizday.AddBusinessDays(sentAt, 180),
	}
	for _, id := range result.TaskIDs {
		task, _ := repo.GetFollowup(context.Background(), id)
		if !task.ScheduledFor.Equal(want[task.FollowupNumber]) {
			t.Errorf("task %d scheduled_for = %v, want %v", task.FollowupNumber, task.ScheduledFor, want[task.FollowupNumber])
		}
	}
}

func TestScheduleForDraftIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	sentAt := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	repo.putDraft(sentDraft("draft-1", "ext-1", 0, sentAt))
	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})

	ctx := context.Background()
	first, err := svc.ScheduleForDraft(ctx, "draft-1")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.ScheduleForDraft(ctx, "draft-1")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.ScheduledCount != 0 || second.SkippedReason == "" {
		t.Fatalf("expected idempotent no-op, got %+v (first=%+v)", second, first)
	}
}

func TestScheduleForDraftRejectsNonSentDraft(t *testing.T) {
	repo := newMemRepo()
	repo.putDraft(&domain.Draft{DraftID: "draft-1", Status: domain.DraftDrafting})
	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})

	_, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	if err != followup.ErrDraftNotSent {
		t.Fatalf("expected ErrDraftNotSent, got %v", err)
	}
}

func TestScheduleForDraftSkipsNoFollowupOptOut(t *testing.T) {
	repo := newMemRepo()
	sentAt := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	d := sentDraft("draft-1", "ext-1", 0, sentAt)
	d.NoFollowup = true
	repo.putDraft(d)
	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})

	result, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ScheduledCount != 0 || result.SkippedReason == "" {
		t.Fatalf("expected opt-out skip, got %+v", result)
	}
}

func TestCancelForDraftKeepsLongTermTask(t *testing.T) {
	repo := newMemRepo()
	sentAt := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	repo.putDraft(sentDraft("draft-1", "ext-1", 0, sentAt))
	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})
	ctx := context.Background()

	if _, err := svc.ScheduleForDraft(ctx, "draft-1"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	result, err := svc.CancelForDraft(ctx, "draft-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.CancelledCount != 3 {
		t.Fatalf("expected 3 cancelled, got %d", result.CancelledCount)
	}
	if result.KeptCount != 1 {
		t.Fatalf("expected 1 kept long-term task, got %d", result.KeptCount)
	}

	// Idempotent: a second call cancels nothing further.
	again, err := svc.CancelForDraft(ctx, "draft-1")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if again.CancelledCount != 0 {
		t.Fatalf("expected idempotent re-cancel, got %d", again.CancelledCount)
	}
}

func TestProcessDueFollowupsGeneratesDraft(t *testing.T) {
	repo := newMemRepo()
	repo.putDraft(sentDraft("draft-1", "ext-1", 0, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)))

	task := &domain.FollowupTask{
		TaskID:            uuid.NewString(),
		DraftID:           "draft-1",
		FollowupNumber:    1,
		BusinessDaysAfter: 3,
		ScheduledFor:      time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
		Status:            domain.FollowupScheduled,
	}
	if err := repo.CreateFollowupBatch(context.Background(), []*domain.FollowupTask{task}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	crm := &fakeCRM{records: map[string]*followup.ProspectRecord{
		"ext-1": {Email: "prospect@example.com", FirstName: "Ada", LastName: "Lovelace", PartnerName: "Acme", Website: "acme.example.com"},
	}}
	composer := &fakeComposer{nextDraftID: "draft-2"}
	svc := newTestService(repo, crm, composer)

	result, err := svc.ProcessDueFollowups(context.Background(), time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Processed != 1 || result.Results[0].Status != string(domain.FollowupDone) {
		t.Fatalf("expected 1 done outcome, got %+v", result)
	}
	if result.SuccessCount != 1 || result.FailureCount != 0 {
		t.Fatalf("expected 1 success and 0 failures, got %+v", result)
	}
	if len(composer.calls) != 1 {
		t.Fatalf("expected composer invoked once, got %d", len(composer.calls))
	}

	updated, _ := repo.GetFollowup(context.Background(), task.TaskID)
	if updated.Status != domain.FollowupDone || updated.DraftIDCreated != "draft-2" {
		t.Fatalf("task not updated correctly: %+v", updated)
	}
}

func TestProcessDueFollowupsCancelsOnReply(t *testing.T) {
	repo := newMemRepo()
	d := sentDraft("draft-1", "ext-1", 0, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	d.HasReply = true
	repo.putDraft(d)

	task := &domain.FollowupTask{
		TaskID:       uuid.NewString(),
		DraftID:      "draft-1",
		FollowupNumber: 1,
		ScheduledFor: time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
		Status:       domain.FollowupScheduled,
	}
	repo.CreateFollowupBatch(context.Background(), []*domain.FollowupTask{task})

	composer := &fakeComposer{}
	svc := newTestService(repo, &fakeCRM{}, composer)

	result, err := svc.ProcessDueFollowups(context.Background(), time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Results[0].Status != string(domain.FollowupCancelled) {
		t.Fatalf("expected cancelled outcome, got %+v", result.Results[0])
	}
	if len(composer.calls) != 0 {
		t.Fatalf("composer must not be called when draft has a reply")
	}
}

func TestProcessDueFollowupsFailsOnMissingDraft(t *testing.T) {
	repo := newMemRepo()
	task := &domain.FollowupTask{
		TaskID:       uuid.NewString(),
		DraftID:      "missing-draft",
		ScheduledFor: time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
		Status:       domain.FollowupScheduled,
	}
	repo.CreateFollowupBatch(context.Background(), []*domain.FollowupTask{task})

	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})
	result, err := svc.ProcessDueFollowups(context.Background(), time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Results[0].Status != string(domain.FollowupFailed) || result.Results[0].Error != "draft_not_found" {
		t.Fatalf("expected draft_not_found failure, got %+v", result.Results[0])
	}
	if result.FailureCount != 1 || result.SuccessCount != 0 {
		t.Fatalf("expected 1 failure and 0 successes, got %+v", result)
	}
}

func TestShiftFollowupsSkipsTerminalTask(t *testing.T) {
	repo := newMemRepo()
	task := &domain.FollowupTask{
		TaskID:       uuid.NewString(),
		DraftID:      "draft-1",
		ScheduledFor: time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
		Status:       domain.FollowupDone,
	}
	repo.CreateFollowupBatch(context.Background(), []*domain.FollowupTask{task})

	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})
	result, err := svc.ShiftFollowups(context.Background(), []string{task.TaskID}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Shifted != 0 || result.Skipped != 1 {
		t.Fatalf("expected terminal task to be skipped, got %+v", result)
	}
}

func TestMarkFollowupsDoneOverridesState(t *testing.T) {
	repo := newMemRepo()
	task := &domain.FollowupTask{
		TaskID:       uuid.NewString(),
		DraftID:      "draft-1",
		ScheduledFor: time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
		Status:       domain.FollowupFailed,
	}
	repo.CreateFollowupBatch(context.Background(), []*domain.FollowupTask{task})

	svc := newTestService(repo, &fakeCRM{}, &fakeComposer{})
	result, err := svc.MarkFollowupsDone(context.Background(), []string{task.TaskID})
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if result.Updated != 1 || result.NotFound != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected 1 updated, got %+v", result)
	}
	updated, _ := repo.GetFollowup(context.Background(), task.TaskID)
	if updated.Status != domain.FollowupDone {
		t.Fatalf("expected status done, got %s", updated.Status)
	}
}
