package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// RegisterSagas subscribes the action request processor to bus.
func RegisterSagas(bus *events.Bus, users *UserService, actions *ActionService) {
	bus.RegisterSaga(domain.EventActionRequestWasCreated, ActionRequestSaga(users, actions))
}

// ActionRequestSaga executes the command behind a freshly created
// ActionRequest and records the outcome as COMPLETED or FAILED.
func ActionRequestSaga(users *UserService, actions *ActionService) events.Saga {
	return func(ctx context.Context, e domain.Event) (events.Command, error) {
		action := domain.ActionType(stringField(e.Data, "action"))
		data, _ := e.Data["data"].(map[string]any)
		userID := stringField(data, "userId")

		var run events.Command
		switch action {
		case domain.ActionEmailVerification:
			email := stringField(data, "email")
			run = func(ctx context.Context) error { return users.VerifyEmail(ctx, userID, email) }
		case domain.ActionPasswordReset:
			hash := stringField(data, "password")
			run = func(ctx context.Context) error { return users.ResetPassword(ctx, userID, hash) }
		default:
			run = func(context.Context) error { return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action) }
		}

		return func(ctx context.Context) error {
			status := domain.ActionStatusCompleted
			if err := runContained(ctx, run); err != nil {
				slogx.FromContext(ctx).Warn("action failed",
					slog.String("action_request_id", e.EntityID),
					slog.String("action", string(action)),
					slog.Any("err", err),
				)
				status = domain.ActionStatusFailed
			}
			return actions.UpdateStatus(ctx, e.EntityID, status)
		}, nil
	}
}

// runContained turns a panic in cmd into an error so the request still
// reaches a terminal status.
func runContained(ctx context.Context, cmd events.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return cmd(ctx)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
