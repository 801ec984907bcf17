package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision is a reviewer's verdict on a pending fill.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts the verb or the resulting status name.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", string(models.FillApproved):
		return DecisionApprove, nil
	case "reject", string(models.FillRejected):
		return DecisionReject, nil
	}
	return "", appErr.Invalid("invalid decision", map[string]string{"decision": "must be approve or reject"})
}

// FillPolicy holds the configurable rules of the fill workflow.
type FillPolicy struct {
	MaxDuration     time.Duration
	CreditOnApprove int
	CreditOnReject  int
}

type FillFilter struct {
	Status models.FillStatus
	Pagination
}

type FillService interface {
	Submit(ctx context.Context, surveyID, fillerID uuid.UUID, durationSeconds int) (*models.Fill, error)
	Review(ctx context.Context, fillID, reviewerID uuid.UUID, decision Decision, note string) (*models.Fill, error)
	ListForUser(ctx context.Context, userID uuid.UUID, f FillFilter) ([]models.Fill, int64, error)
	ListForSurvey(ctx context.Context, surveyID, callerID uuid.UUID, f FillFilter) ([]models.Fill, int64, error)
}

type fillService struct {
	db      *gorm.DB
	fills   repository.FillRepository
	surveys repository.SurveyRepository
	users   repository.UserRepository
	ledger  LedgerService
	policy  FillPolicy
	now     Clock
}

func NewFillService(
	db *gorm.DB,
	fills repository.FillRepository,
	surveys repository.SurveyRepository,
	users repository.UserRepository,
	ledger LedgerService,
	policy FillPolicy,
) FillService {
	return &fillService{
		db:      db,
		fills:   fills,
		surveys: surveys,
		users:   users,
		ledger:  ledger,
		policy:  policy,
		now:     utcNow,
	}
}

var _ FillService = (*fillService)(nil)

// Submit records a pending fill. No points move until review. The survey row
// is locked so a concurrent close cannot interleave.
func (s *fillService) Submit(ctx context.Context, surveyID, fillerID uuid.UUID, durationSeconds int) (*models.Fill, error) {
	fill := &models.Fill{
		SurveyID:        surveyID,
		FillerID:        fillerID,
		DurationSeconds: durationSeconds,
		Status:          models.FillPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var survey models.Survey
		if err := s.surveys.WithTx(tx).GetForUpdate(ctx, surveyID, &survey); err != nil {
			return err
		}
		if !survey.OpenAt(s.now()) {
			return appErr.New(appErr.CodeSurveyNotActive, "survey is not accepting fills")
		}
		if survey.OwnerID == fillerID {
			return appErr.New(appErr.CodeSelfFill, "owners cannot fill their own survey")
		}
		if err := s.checkDuration(durationSeconds); err != nil {
			return err
		}

		fills := s.fills.WithTx(tx)
		exists, err := fills.Exists(ctx, surveyID, fillerID)
		if err != nil {
			return err
		}
		if exists {
			return appErr.New(appErr.CodeAlreadyFilled, "survey already filled by this user")
		}
		return fills.Create(ctx, fill)
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("fill submitted",
		zap.String("fill_id", fill.ID.String()),
		zap.String("survey_id", surveyID.String()),
		zap.String("filler_id", fillerID.String()),
	)
	return fill, nil
}

func (s *fillService) checkDuration(seconds int) error {
	if seconds <= 0 || int64(seconds) > int64(s.policy.MaxDuration/time.Second) {
		return appErr.Newf(appErr.CodeDurationOutOfRange,
			"duration must be between 1 and %d seconds", int(s.policy.MaxDuration/time.Second)).
			WithMeta("fields", map[string]string{"duration_seconds": "out of range"})
	}
	return nil
}

// Review decides a pending fill. Status change, reward credit, activity and
// credit score adjustments commit together or not at all.
func (s *fillService) Review(ctx context.Context, fillID, reviewerID uuid.UUID, decision Decision, note string) (*models.Fill, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, appErr.Invalid("invalid decision", map[string]string{"decision": "must be approve or reject"})
	}

	var fill models.Fill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fills := s.fills.WithTx(tx)
		if err := fills.GetForUpdate(ctx, fillID, &fill); err != nil {
			return err
		}
		var survey models.Survey
		if err := s.surveys.WithTx(tx).GetByID(ctx, fill.SurveyID, &survey); err != nil {
			return err
		}
		if survey.OwnerID != reviewerID {
			return appErr.New(appErr.CodeNotSurveyOwner, "only the survey owner can review fills")
		}
		if fill.Status.Terminal() {
			return appErr.New(appErr.CodeAlreadyReviewed, "fill has already been reviewed")
		}

		review := repository.FillReview{Status: models.FillRejected, Note: note, ReviewedAt: s.now()}
		credit := s.policy.CreditOnReject
		if decision == DecisionApprove {
			review.Status = models.FillApproved
			review.PointsAwarded = survey.RewardPoints
			credit = s.policy.CreditOnApprove
		}

		ok, err := fills.Decide(ctx, fillID, review)
		if err != nil {
			return err
		}
		if !ok {
			return appErr.New(appErr.CodeAlreadyReviewed, "fill has already been reviewed")
		}

		users := s.users.WithTx(tx)
		if review.PointsAwarded > 0 {
			if _, err := s.ledger.ApplyTx(ctx, tx, Entry{
				UserID:      fill.FillerID,
				Delta:       review.PointsAwarded,
				Reason:      models.ReasonFillReward,
				RelatedType: models.RelatedFill,
				RelatedID:   fill.ID.String(),
			}); err != nil {
				return err
			}
			if err := users.AddActivity(ctx, fill.FillerID, review.PointsAwarded); err != nil {
				return err
			}
		}
		if credit != 0 {
			if err := users.AdjustCredit(ctx, fill.FillerID, credit); err != nil {
				return err
			}
		}

		fill.Status = review.Status
		fill.PointsAwarded = review.PointsAwarded
		fill.ReviewNote = review.Note
		fill.ReviewedAt = &review.ReviewedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("fill reviewed",
		zap.String("fill_id", fillID.String()),
		zap.String("reviewer_id", reviewerID.String()),
		zap.String("status", string(fill.Status)),
		zap.Int64("points_awarded", fill.PointsAwarded),
	)
	return &fill, nil
}

func (s *fillService) ListForUser(ctx context.Context, userID uuid.UUID, f FillFilter) ([]models.Fill, int64, error) {
	if err := validFillStatus(f.Status); err != nil {
		return nil, 0, err
	}
	return s.fills.ListByFiller(ctx, userID, f.Status, f.window())
}

func (s *fillService) ListForSurvey(ctx context.Context, surveyID, callerID uuid.UUID, f FillFilter) ([]models.Fill, int64, error) {
	if err := validFillStatus(f.Status); err != nil {
		return nil, 0, err
	}
	var survey models.Survey
	if err := s.surveys.GetByID(ctx, surveyID, &survey); err != nil {
		return nil, 0, err
	}
	if survey.OwnerID != callerID {
		return nil, 0, appErr.New(appErr.CodeNotSurveyOwner, "only the survey owner can list its fills")
	}
	return s.fills.ListBySurvey(ctx, surveyID, f.Status, f.window())
}

func validFillStatus(st models.FillStatus) error {
	switch st {
	case "", models.FillPending, models.FillApproved, models.FillRejected:
		return nil
	}
	return appErr.Invalid("invalid filter", map[string]string{"status": "must be pending, approved or rejected"})
}
