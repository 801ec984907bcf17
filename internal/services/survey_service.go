package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"github.com/taskhall/engine/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	expireBatchSize = 100

	// MaxRewardPoints caps the reward a single survey can offer.
	MaxRewardPoints = 1_000_000
)

// PublishCostPolicy prices a survey from its reward: Percent of the reward
// plus a Flat fee.
type PublishCostPolicy struct {
	Percent int64
	Flat    int64
}

// Cost returns the points charged for publishing a survey with the given
// reward. Negative inputs and results that do not fit in an int64 are
// rejected as invalid.
func (p PublishCostPolicy) Cost(reward int64) (int64, error) {
	if reward < 0 || p.Percent < 0 || p.Flat < 0 {
		return 0, appErr.Invalid("invalid publish cost", map[string]string{"reward_points": "must not be negative"})
	}
	if reward != 0 && p.Percent > math.MaxInt64/reward {
		return 0, appErr.Invalid("invalid publish cost", map[string]string{"reward_points": "is too large"})
	}
	cost := reward * p.Percent / 100
	if cost > math.MaxInt64-p.Flat {
		return 0, appErr.Invalid("invalid publish cost", map[string]string{"reward_points": "is too large"})
	}
	return cost + p.Flat, nil
}

// PublishInput is a new survey as submitted by its owner.
type PublishInput struct {
	Title            string
	Description      string
	Link             string
	RewardPoints     int64
	Deadline         *time.Time
	EstimatedMinutes int
}

// SurveyFilter narrows List. An empty Status means active.
type SurveyFilter struct {
	Status     models.SurveyStatus
	OwnerID    uuid.UUID
	MinReward  int64
	MaxMinutes int
	Keyword    string
	Pagination
}

type SurveyService interface {
	Publish(ctx context.Context, ownerID uuid.UUID, in PublishInput) (*models.Survey, error)
	Close(ctx context.Context, surveyID, callerID uuid.UUID) (*models.Survey, error)
	Get(ctx context.Context, surveyID uuid.UUID) (*models.Survey, error)
	List(ctx context.Context, f SurveyFilter) ([]models.Survey, int64, error)
	// ExpireOverdue closes every active survey whose deadline is not after now.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type surveyService struct {
	db      *gorm.DB
	surveys repository.SurveyRepository
	ledger  LedgerService
	policy  PublishCostPolicy
	now     Clock
}

func NewSurveyService(db *gorm.DB, surveys repository.SurveyRepository, ledger LedgerService, policy PublishCostPolicy) SurveyService {
	return &surveyService{db: db, surveys: surveys, ledger: ledger, policy: policy, now: utcNow}
}

var _ SurveyService = (*surveyService)(nil)

// Publish charges the owner the publishing cost and creates the survey as
// active. Both happen in one transaction.
func (s *surveyService) Publish(ctx context.Context, ownerID uuid.UUID, in PublishInput) (*models.Survey, error) {
	now := s.now()
	if err := s.validatePublish(in, now); err != nil {
		return nil, err
	}

	if in.Deadline != nil {
		d := in.Deadline.UTC()
		in.Deadline = &d
	}
	cost, err := s.policy.Cost(in.RewardPoints)
	if err != nil {
		return nil, err
	}
	survey := &models.Survey{
		OwnerID:          ownerID,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Link:             strings.TrimSpace(in.Link),
		RewardPoints:     in.RewardPoints,
		PublishCost:      cost,
		Deadline:         in.Deadline,
		EstimatedMinutes: in.EstimatedMinutes,
		Status:           models.SurveyActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.surveys.WithTx(tx).Create(ctx, survey); err != nil {
			return err
		}
		if cost == 0 {
			return nil
		}
		_, err := s.ledger.ApplyTx(ctx, tx, Entry{
			UserID:      ownerID,
			Delta:       -cost,
			Reason:      models.ReasonPublishCost,
			RelatedType: models.RelatedSurvey,
			RelatedID:   survey.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("survey published",
		zap.String("survey_id", survey.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int64("reward_points", survey.RewardPoints),
		zap.Int64("cost", cost),
	)
	return survey, nil
}

func (s *surveyService) validatePublish(in PublishInput, now time.Time) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "is required"
	} else if utf8.RuneCountInString(in.Title) > 200 {
		fields["title"] = "must be at most 200 characters"
	}
	if strings.TrimSpace(in.Link) == "" {
		fields["link"] = "is required"
	} else if err := validation.Var(strings.TrimSpace(in.Link), "url,max=500"); err != nil {
		fields["link"] = "must be a valid URL"
	}
	if in.RewardPoints < 0 {
		fields["reward_points"] = "must not be negative"
	} else if in.RewardPoints > MaxRewardPoints {
		fields["reward_points"] = fmt.Sprintf("must be at most %d", MaxRewardPoints)
	}
	if in.EstimatedMinutes < 0 {
		fields["estimated_minutes"] = "must not be negative"
	}
	if in.Deadline != nil && !in.Deadline.After(now) {
		fields["deadline"] = "must be in the future"
	}
	if len(fields) > 0 {
		return appErr.Invalid("invalid survey", fields)
	}
	return nil
}

// Close ends a survey for new fills. Pending fills stay reviewable and no
// publishing cost is refunded.
func (s *surveyService) Close(ctx context.Context, surveyID, callerID uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	if err := s.surveys.GetByID(ctx, surveyID, &survey); err != nil {
		return nil, err
	}
	if survey.OwnerID != callerID {
		return nil, appErr.New(appErr.CodeNotOwner, "only the owner can close a survey")
	}
	next, err := survey.Status.Transition(models.SurveyClosed)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.surveys.Close(ctx, surveyID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.New(appErr.CodeAlreadyClosed, "survey is already closed")
	}

	survey.Status = next
	survey.ClosedAt = &now
	logger.L().Info("survey closed", zap.String("survey_id", surveyID.String()), zap.String("owner_id", callerID.String()))
	return &survey, nil
}

func (s *surveyService) Get(ctx context.Context, surveyID uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	if err := s.surveys.GetByID(ctx, surveyID, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s *surveyService) List(ctx context.Context, f SurveyFilter) ([]models.Survey, int64, error) {
	if f.Status == "" {
		f.Status = models.SurveyActive
	}
	if !f.Status.Valid() {
		return nil, 0, appErr.Invalid("invalid filter", map[string]string{"status": "must be draft, active or closed"})
	}
	return s.surveys.List(ctx, repository.SurveyQuery{
		Status:     f.Status,
		OwnerID:    f.OwnerID,
		MinReward:  f.MinReward,
		MaxMinutes: f.MaxMinutes,
		Keyword:    f.Keyword,
	}, f.window())
}

func (s *surveyService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	closed := 0
	for {
		batch, err := s.surveys.ListOverdue(ctx, now, expireBatchSize)
		if err != nil {
			return closed, err
		}
		progressed := false
		for _, survey := range batch {
			ok, err := s.surveys.Close(ctx, survey.ID, now)
			if err != nil {
				return closed, err
			}
			if ok {
				closed++
				progressed = true
				logger.L().Info("survey expired", zap.String("survey_id", survey.ID.String()))
			}
		}
		if len(batch) < expireBatchSize || !progressed {
			return closed, nil
		}
	}
}
