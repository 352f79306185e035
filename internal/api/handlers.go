package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

// Handlers holds the followup engine's HTTP handlers.
type Handlers struct {
	service *followup.Service
	logger  zerolog.Logger
}

// NewHandlers creates a Handlers bound to service.
func NewHandlers(service *followup.Service, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// envelope is the success/error response shape every control endpoint
// replies with.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	ErrType string      `json:"error_type,omitempty"`
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondFollowupError maps a followup/resilience error to an HTTP status
// and a sanitized error envelope, using the wire vocabulary of error_type
// tokens: validation_error, draft_not_found, draft_not_sent,
// missing_sent_at, rate_limit_exceeded, circuit_breaker_open,
// external_service_error, internal_error. Business errors are safe to
// expose verbatim; anything else is logged in full and reported
// generically.
func (h *Handlers) respondFollowupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, followup.ErrDraftNotFound), errors.Is(err, followup.ErrFollowupNotFound):
		respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: err.Error(), ErrType: "draft_not_found"})
	case errors.Is(err, followup.ErrDraftNotSent):
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error(), ErrType: "draft_not_sent"})
	case errors.Is(err, followup.ErrMissingSentAt):
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error(), ErrType: "missing_sent_at"})
	case errors.Is(err, followup.ErrValidation):
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error(), ErrType: "validation_error"})
	case errors.Is(err, resilience.ErrCircuitOpen):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("circuit breaker open")
		respondJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Error:   safeErrorMessage(http.StatusServiceUnavailable, err),
			ErrType: "circuit_breaker_open",
		})
	default:
		var svcErr *followup.ExternalServiceError
		if errors.As(err, &svcErr) {
			h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("external dependency call failed")
			respondJSON(w, http.StatusServiceUnavailable, envelope{
				Success: false,
				Error:   safeErrorMessage(http.StatusServiceUnavailable, err),
				ErrType: "external_service_error",
			})
			return
		}
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   safeErrorMessage(http.StatusInternalServerError, err),
			ErrType: "internal_error",
		})
	}
}

type draftIDRequest struct {
	DraftID string `json:"draft_id"`
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// HandleScheduleFollowups schedules the fixed followup set for one draft.
//
//	POST /schedule-followups {"draft_id": "..."}
func (h *Handlers) HandleScheduleFollowups(w http.ResponseWriter, r *http.Request) {
	var req draftIDRequest
	if err := decodeJSON(r, &req); err != nil || req.DraftID == "" {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "draft_id is required", ErrType: "validation_error"})
		return
	}

	result, err := h.service.ScheduleForDraft(r.Context(), req.DraftID)
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleScheduleMissingFollowups bulk-schedules every eligible sent draft.
//
//	POST /schedule-missing-followups
func (h *Handlers) HandleScheduleMissingFollowups(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ScheduleAllSentDrafts(r.Context())
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleCancelFollowups cancels a draft's pending followups (other than
// the long-term one) after a prospect reply.
//
//	POST /cancel-followups {"draft_id": "..."}
func (h *Handlers) HandleCancelFollowups(w http.ResponseWriter, r *http.Request) {
	var req draftIDRequest
	if err := decodeJSON(r, &req); err != nil || req.DraftID == "" {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "draft_id is required", ErrType: "validation_error"})
		return
	}

	result, err := h.service.CancelForDraft(r.Context(), req.DraftID)
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleProcessPendingFollowups fires every followup task due at the
// moment of the call.
//
//	POST /process-pending-followups
func (h *Handlers) HandleProcessPendingFollowups(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessDueFollowups(r.Context(), time.Time{})
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleRetryFailedFollowups reprocesses every task in status=failed.
//
//	POST /retry-failed-followups
func (h *Handlers) HandleRetryFailedFollowups(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RetryFailedFollowups(r.Context())
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleSyncFollowupIDs is the §4.6 repair operation that populates
// followup_ids on drafts that already have tasks in the store.
//
//	POST /sync-followup-ids
func (h *Handlers) HandleSyncFollowupIDs(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncTaskIDsToDrafts(r.Context())
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

// HandleSetMissingScheduledFlag is the §4.6 repair operation that flips
// followups_scheduled true for drafts whose tasks were already created.
//
//	POST /set-missing-scheduled-flag
func (h *Handlers) HandleSetMissingScheduledFlag(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SetMissingScheduledFlag(r.Context())
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

type shiftFollowupsRequest struct {
	FollowupIDs []string `json:"followup_ids"`
	DaysShift   int      `json:"days_shift"`
}

// HandleShiftFollowup shifts a batch of non-terminal tasks' scheduled_for
// by a number of business days each, skipping (rather than failing) any
// task that is missing or already terminal.
//
//	POST /shift-followups {"followup_ids": ["..."], "days_shift": 2}
func (h *Handlers) HandleShiftFollowup(w http.ResponseWriter, r *http.Request) {
	var req shiftFollowupsRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FollowupIDs) == 0 {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "followup_ids is required", ErrType: "validation_error"})
		return
	}

	result, err := h.service.ShiftFollowups(r.Context(), req.FollowupIDs, req.DaysShift)
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}

type markFollowupsDoneRequest struct {
	FollowupIDs []string `json:"followup_ids"`
	Reason      string   `json:"reason,omitempty"`
}

// HandleMarkFollowupsDone force-transitions a list of tasks to done. This
// is an operator override: unlike the other repair operations, it is
// permitted to transition a terminal (failed, cancelled) task to done.
//
//	POST /mark-followups-done {"followup_ids": ["..."], "reason": "..."}
func (h *Handlers) HandleMarkFollowupsDone(w http.ResponseWriter, r *http.Request) {
	var req markFollowupsDoneRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FollowupIDs) == 0 {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "followup_ids is required", ErrType: "validation_error"})
		return
	}
	if req.Reason != "" {
		h.logger.Info().Strs("followup_ids", req.FollowupIDs).Str("reason", req.Reason).Msg("operator mark-done override")
	}

	result, err := h.service.MarkFollowupsDone(r.Context(), req.FollowupIDs)
	if err != nil {
		h.respondFollowupError(w, r, err)
		return
	}
	respondOK(w, result)
}
