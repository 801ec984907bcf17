package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/services"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
)

const (
	TypeSurveyExpire = "survey:expire"
	TypeLedgerAudit  = "ledger:audit"
)

// ExpirePayload pins the cutoff for a survey:expire task. A zero At means
// the time the task runs.
type ExpirePayload struct {
	At time.Time `json:"at,omitzero"`
}

// NewSurveyExpireTask builds a survey:expire task. Only one may be queued
// within uniqueFor, so a slow worker does not pile up duplicates.
func NewSurveyExpireTask(at time.Time, uniqueFor time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpirePayload{At: at})
	if err != nil {
		return nil, fmt.Errorf("marshal expire payload: %w", err)
	}
	return asynq.NewTask(TypeSurveyExpire, payload, uniqueOpts(uniqueFor)...), nil
}

// NewLedgerAuditTask builds a ledger:audit task.
func NewLedgerAuditTask(uniqueFor time.Duration) *asynq.Task {
	return asynq.NewTask(TypeLedgerAudit, nil, uniqueOpts(uniqueFor)...)
}

func uniqueOpts(d time.Duration) []asynq.Option {
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(5 * time.Minute)}
	if d > 0 {
		opts = append(opts, asynq.Unique(d))
	}
	return opts
}

// MaintenanceHandler runs the periodic housekeeping jobs.
type MaintenanceHandler struct {
	surveys services.SurveyService
	ledger  services.LedgerService
	now     func() time.Time
}

func NewMaintenanceHandler(surveys services.SurveyService, ledger services.LedgerService) *MaintenanceHandler {
	return &MaintenanceHandler{surveys: surveys, ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// Register binds the handler to mux.
func (h *MaintenanceHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSurveyExpire, h.HandleSurveyExpire)
	mux.HandleFunc(TypeLedgerAudit, h.HandleLedgerAudit)
}

// HandleSurveyExpire closes active surveys whose deadline has passed.
func (h *MaintenanceHandler) HandleSurveyExpire(ctx context.Context, t *asynq.Task) error {
	var p ExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.L().Error("invalid expire task payload", zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	at := p.At
	if at.IsZero() {
		at = h.now()
	}

	closed, err := h.surveys.ExpireOverdue(ctx, at.UTC())
	if err != nil {
		logger.L().Error("expire overdue surveys failed", zap.Error(err))
		return err
	}
	if closed > 0 {
		logger.L().Info("expired overdue surveys", zap.Int("closed", closed), zap.Time("cutoff", at))
	}
	return nil
}

// HandleLedgerAudit compares every cached balance with its ledger sum.
// Drift is reported as a failed task so it shows up in the queue's
// archive.
func (h *MaintenanceHandler) HandleLedgerAudit(ctx context.Context, _ *asynq.Task) error {
	drifted, err := h.ledger.ReconcileAll(ctx)
	if err != nil {
		logger.L().Error("ledger audit failed", zap.Error(err))
		return err
	}
	if len(drifted) > 0 {
		ids := make([]string, 0, len(drifted))
		for _, d := range drifted {
			ids = append(ids, d.UserID.String())
		}
		logger.L().Error("ledger drift detected", zap.Int("users", len(drifted)), zap.Strings("user_ids", ids))
		return fmt.Errorf("%w: %v", asynq.SkipRetry,
			appErr.Newf(appErr.CodeInternal, "ledger drift for %d users", len(drifted)))
	}
	logger.L().Info("ledger audit clean")
	return nil
}
