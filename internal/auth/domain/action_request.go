package domain

import (
	"fmt"
	"time"
)

type ActionStatus string

const (
	ActionStatusProcessing ActionStatus = "PROCESSING"
	ActionStatusCompleted  ActionStatus = "COMPLETED"
	ActionStatusFailed     ActionStatus = "FAILED"
)

type ActionType string

const (
	ActionEmailVerification ActionType = "EMAIL_VERIFICATION"
	ActionPasswordReset     ActionType = "PASSWORD_RESET"
)

// TokenType returns the token kind that authorizes the action.
func (a ActionType) TokenType() (TokenType, bool) {
	switch a {
	case ActionEmailVerification:
		return TokenTypeEmailVerification, true
	case ActionPasswordReset:
		return TokenTypePasswordReset, true
	}
	return "", false
}

var actionTransitions = map[ActionStatus]map[ActionStatus]struct{}{
	ActionStatusProcessing: {
		ActionStatusCompleted: {},
		ActionStatusFailed:    {},
	},
	ActionStatusCompleted: {},
	ActionStatusFailed:    {},
}

// IsTerminal reports whether no transition leaves s.
func (s ActionStatus) IsTerminal() bool {
	next, ok := actionTransitions[s]
	return ok && len(next) == 0
}

// ActionRequest tracks the asynchronous execution of a redeemed action token.
type ActionRequest struct {
	Recorder

	ID        string
	Status    ActionStatus
	Action    ActionType
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewActionRequest creates a PROCESSING request and raises ActionRequestWasCreated.
func NewActionRequest(id string, action ActionType, data map[string]any, now time.Time) (*ActionRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: action request id is required", ErrValidation)
	}
	if _, ok := action.TokenType(); !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	now = now.UTC()
	ar := &ActionRequest{
		ID:        id,
		Status:    ActionStatusProcessing,
		Action:    action,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The request itself travels in the data, there is no snapshot.
	ar.record(Event{
		Name:       EventActionRequestWasCreated,
		EntityID:   ar.ID,
		OccurredAt: now,
		Data: map[string]any{
			"status": string(ar.Status),
			"action": string(ar.Action),
			"data":   ar.Data,
		},
	})
	return ar, nil
}

// TransitionTo moves the request to status. Terminal statuses are final.
func (ar *ActionRequest) TransitionTo(status ActionStatus, now time.Time) error {
	if _, ok := actionTransitions[ar.Status][status]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ar.Status, status)
	}

	ar.Status = status
	ar.UpdatedAt = now.UTC()
	ar.record(Event{
		Name:       EventActionRequestStatusWasUpdated,
		EntityID:   ar.ID,
		OccurredAt: ar.UpdatedAt,
		Data: map[string]any{
			"status": string(ar.Status),
			"action": string(ar.Action),
		},
		Snapshot: ar.DTO(),
	})
	return nil
}

// ActionRequestDTO is the cached and public projection.
type ActionRequestDTO struct {
	ID        string         `json:"id" cbor:"id"`
	Status    ActionStatus   `json:"status" cbor:"status"`
	Action    ActionType     `json:"action" cbor:"action"`
	Data      map[string]any `json:"data,omitempty" cbor:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt" cbor:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" cbor:"updatedAt"`
}

func (ar *ActionRequest) DTO() ActionRequestDTO {
	return ActionRequestDTO{
		ID:        ar.ID,
		Status:    ar.Status,
		Action:    ar.Action,
		Data:      ar.Data,
		CreatedAt: ar.CreatedAt,
		UpdatedAt: ar.UpdatedAt,
	}
}

// ActionRequestFromDTO rebuilds the aggregate with an empty event buffer.
func ActionRequestFromDTO(d ActionRequestDTO) *ActionRequest {
	return &ActionRequest{
		ID:        d.ID,
		Status:    d.Status,
		Action:    d.Action,
		Data:      d.Data,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
