package services

import (
	"context"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"github.com/taskhall/engine/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const profileBatchSize = 50

// ProfilePatch carries profile fields from a request. Absent fields are left
// alone by Update and cleared by Replace; explicit nulls always clear.
type ProfilePatch struct {
	Gender                 Optional[string]   `json:"gender"`
	Age                    Optional[int]      `json:"age"`
	Grade                  Optional[string]   `json:"grade"`
	College                Optional[string]   `json:"college"`
	Major                  Optional[string]   `json:"major"`
	MBTI                   Optional[string]   `json:"mbti"`
	CurrentStatus          Optional[string]   `json:"current_status"`
	Interests              Optional[[]string] `json:"interests"`
	Organizations          Optional[[]string] `json:"organizations"`
	ConsumptionPreferences Optional[[]string] `json:"consumption_preferences"`
	CareerIntention        Optional[[]string] `json:"career_intention"`
	Skills                 Optional[[]string] `json:"skills"`
}

// MatchCriteria constrains Search. Every field is optional and they combine
// with AND.
type MatchCriteria struct {
	College       string
	Major         string
	MBTI          string
	MinCompletion int
	ExcludeUserID uuid.UUID
}

type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*models.Profile, error)
	Replace(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*models.Profile, error)
	// Search yields matching profiles by completion descending then user id
	// ascending. It never writes.
	Search(ctx context.Context, c MatchCriteria) iter.Seq2[models.Profile, error]
}

type profileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles}
}

var _ ProfileService = (*profileService)(nil)

// Get returns the stored profile, or an empty one for users that never saved.
func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := models.Profile{UserID: userID}
	if err := s.profiles.Get(ctx, userID, &p); err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*models.Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, p, patch)
}

func (s *profileService) Replace(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*models.Profile, error) {
	return s.save(ctx, &models.Profile{UserID: userID}, patch)
}

func (s *profileService) save(ctx context.Context, p *models.Profile, patch ProfilePatch) (*models.Profile, error) {
	applyPatch(p, patch)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	p.Normalize()
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	logger.L().Info("profile saved", zap.String("user_id", p.UserID.String()), zap.Int("completion", p.Completion))
	return p, nil
}

func applyPatch(p *models.Profile, patch ProfilePatch) {
	setString(&p.Gender, patch.Gender, strings.ToLower)
	if patch.Age.Set {
		p.Age = patch.Age.Value
	}
	setString(&p.Grade, patch.Grade, nil)
	setString(&p.College, patch.College, nil)
	setString(&p.Major, patch.Major, nil)
	setString(&p.MBTI, patch.MBTI, strings.ToUpper)
	setString(&p.CurrentStatus, patch.CurrentStatus, nil)
	setList(&p.Interests, patch.Interests)
	setList(&p.Organizations, patch.Organizations)
	setList(&p.ConsumptionPreferences, patch.ConsumptionPreferences)
	setList(&p.CareerIntention, patch.CareerIntention)
	setList(&p.Skills, patch.Skills)
}

// setString stores a trimmed value; blank values clear the field.
func setString(dst **string, o Optional[string], norm func(string) string) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		*dst = nil
		return
	}
	v := strings.TrimSpace(*o.Value)
	if v == "" {
		*dst = nil
		return
	}
	if norm != nil {
		v = norm(v)
	}
	*dst = &v
}

// setList stores trimmed, non-blank items.
func setList(dst *datatypes.JSONSlice[string], o Optional[[]string]) {
	if !o.Set {
		return
	}
	out := datatypes.JSONSlice[string]{}
	if o.Value != nil {
		for _, item := range *o.Value {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	*dst = out
}

func (s *profileService) Search(ctx context.Context, c MatchCriteria) iter.Seq2[models.Profile, error] {
	q := repository.ProfileQuery{
		College:       strings.TrimSpace(c.College),
		Major:         strings.TrimSpace(c.Major),
		MBTI:          strings.ToUpper(strings.TrimSpace(c.MBTI)),
		MinCompletion: c.MinCompletion,
		ExcludeUserID: c.ExcludeUserID,
	}
	return func(yield func(models.Profile, error) bool) {
		if q.MinCompletion < 0 || q.MinCompletion > 100 {
			yield(models.Profile{}, appErr.Invalid("invalid criteria", map[string]string{"min_completion": "must be between 0 and 100"}))
			return
		}

		var cursor *repository.ProfileCursor
		for {
			batch, err := s.profiles.SearchAfter(ctx, q, cursor, profileBatchSize)
			if err != nil {
				yield(models.Profile{}, err)
				return
			}
			for _, p := range batch {
				if !yield(p, nil) {
					return
				}
			}
			if len(batch) < profileBatchSize {
				return
			}
			last := batch[len(batch)-1]
			cursor = &repository.ProfileCursor{Completion: last.Completion, UserID: last.UserID}
		}
	}
}

// Collect drains up to limit items from seq.
func Collect[T any](seq iter.Seq2[T, error], limit int) ([]T, error) {
	if limit <= 0 {
		return []T{}, nil
	}
	out := make([]T, 0, limit)
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
