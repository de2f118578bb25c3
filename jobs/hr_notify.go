package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/descanso-app/descanso/internal/request"
	"github.com/descanso-app/descanso/internal/shared"
)

// HRNotifyJob hands approved requests off to HR. Every approval that has
// rested past the grace period is moved to the notified status under the
// system actor. Lost races against concurrent writers are skipped, not
// retried: the request already left the approved state.
type HRNotifyJob struct {
	repo     request.Repository
	recorder *shared.DecisionRecorder
	logger   *slog.Logger

	now func() time.Time
}

// NewHRNotifyJob constructs the hand-off job.
func NewHRNotifyJob(repo request.Repository, recorder *shared.DecisionRecorder, logger *slog.Logger) *HRNotifyJob {
	return &HRNotifyJob{repo: repo, recorder: recorder, logger: logger, now: time.Now}
}

// Handle processes TaskHRNotifyScan tasks.
func (j *HRNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload HRNotifyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	handed, err := j.Scan(ctx, payload.Grace, payload.Limit)
	if handed > 0 {
		j.logger.Info("hr hand-off scan", slog.Int("handed_off", handed))
	}
	return err
}

// Scan performs one hand-off pass and returns how many requests moved.
func (j *HRNotifyJob) Scan(ctx context.Context, grace time.Duration, limit int) (int, error) {
	now := j.now()
	due, err := j.repo.ListApprovedBefore(ctx, now.Add(-grace))
	if err != nil {
		return 0, err
	}

	actor := shared.SystemIdentity()
	handed := 0
	for _, req := range due {
		if limit > 0 && handed >= limit {
			break
		}
		if err := request.Authorize(actor, request.StatusApproved, request.StatusNotified); err != nil {
			return handed, err
		}
		_, err := j.repo.UpdateStatus(ctx, req.ID, request.StatusApproved, request.StatusNotified, actor.ID, now)
		if err != nil {
			if errors.Is(err, shared.ErrStaleState) || errors.Is(err, shared.ErrNotFound) {
				j.logger.Debug("hand-off skipped",
					slog.String("request_id", req.ID.String()),
					slog.Any("error", err))
				continue
			}
			return handed, err
		}
		handed++
		if j.recorder != nil {
			if err := j.recorder.Record(ctx, shared.DecisionEntry{
				RefID:   req.ID,
				ActorID: actor.ID,
				Action:  shared.DecisionNotify,
				Note:    "handed off to HR",
				At:      now,
			}); err != nil {
				j.logger.Warn("record hand-off", slog.String("request_id", req.ID.String()), slog.Any("error", err))
			}
		}
	}
	return handed, nil
}
