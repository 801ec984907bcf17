package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"go.uber.org/zap"
)

type ReportInput struct {
	TargetType string
	TargetID   uuid.UUID
	Reason     string
}

type ReportService interface {
	Create(ctx context.Context, reporterID uuid.UUID, in ReportInput) (*models.Report, error)
}

type reportService struct {
	reports repository.ReportRepository
	users   repository.UserRepository
	surveys repository.SurveyRepository
}

func NewReportService(reports repository.ReportRepository, users repository.UserRepository, surveys repository.SurveyRepository) ReportService {
	return &reportService{reports: reports, users: users, surveys: surveys}
}

var _ ReportService = (*reportService)(nil)

func (s *reportService) Create(ctx context.Context, reporterID uuid.UUID, in ReportInput) (*models.Report, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	fields := map[string]string{}
	if in.TargetType != models.ReportTargetSurvey && in.TargetType != models.ReportTargetUser {
		fields["target_type"] = "must be survey or user"
	}
	if in.TargetID == uuid.Nil {
		fields["target_id"] = "is required"
	}
	if in.Reason == "" {
		fields["reason"] = "is required"
	} else if len([]rune(in.Reason)) > 200 {
		fields["reason"] = "must be at most 200 characters"
	}
	if len(fields) > 0 {
		return nil, appErr.Invalid("invalid report", fields)
	}

	switch in.TargetType {
	case models.ReportTargetSurvey:
		var survey models.Survey
		if err := s.surveys.GetByID(ctx, in.TargetID, &survey); err != nil {
			return nil, err
		}
	case models.ReportTargetUser:
		ok, err := s.users.Exists(ctx, in.TargetID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErr.New(appErr.CodeNotFound, "user not found")
		}
	}

	report := &models.Report{
		ReporterID: reporterID,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Reason:     in.Reason,
		Status:     models.ReportOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	total, err := s.reports.CountByTarget(ctx, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	logger.L().Info("report filed",
		zap.String("report_id", report.ID.String()),
		zap.String("target_type", in.TargetType),
		zap.String("target_id", in.TargetID.String()),
		zap.Int64("open_reports", total),
	)
	return report, nil
}
