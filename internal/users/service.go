package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/internal/risk"
	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/security"
	"github.com/balcaopos/balcao-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateUserInput describes a new staff account.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     enums.UserRole
}

// Service manages staff accounts. Creation and deletion are audited; neither
// consumes the daily mutation quota, which guards catalog edits only.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor types.Actor, ids []uuid.UUID) (int, error)
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	auditor  audit.Service
	pwCfg    config.PasswordConfig
	location *time.Location
	now      func() time.Time
}

// NewService builds the users service.
func NewService(tx txRunner, repo Repository, auditor audit.Service, pwCfg config.PasswordConfig, location *time.Location) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if location == nil {
		location = time.UTC
	}
	return &service{tx: tx, repo: repo, auditor: auditor, pwCfg: pwCfg, location: location, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and name are required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown role %q", input.Role))
	}

	if existing, err := s.repo.FindByEmail(ctx, email); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         input.Role,
		IsActive:     true,
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		detail := &details.UserCreate{UserID: user.ID, Email: user.Email, Role: user.Role}
		tags := risk.Classify(enums.AuditActionUserCreate, detail, nil, risk.Context{LocalTime: now.In(s.location)})
		_, err := s.auditor.WithTx(tx).Record(ctx, audit.RecordInput{
			ActorID:    actorRef(actor),
			Action:     enums.AuditActionUserCreate,
			EntityType: "user",
			EntityID:   user.ID.String(),
			Detail:     detail,
			Provenance: audit.Provenance{SourceAddr: actor.SourceAddr, ClientAgent: actor.ClientAgent},
			RiskTags:   tags,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) Delete(ctx context.Context, actor types.Actor, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one user id required")
	}
	for _, id := range ids {
		if id == actor.ID {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "cannot delete your own account")
		}
	}

	now := s.now()
	deleted := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auditor := s.auditor.WithTx(tx)
		for _, id := range ids {
			user, err := repo.FindByID(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
			}
			if user == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %s not found", id))
			}
			if err := repo.Delete(ctx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
			}

			detail := &details.UserDelete{UserID: user.ID, Email: user.Email, BatchSize: len(ids)}
			tags := risk.Classify(enums.AuditActionUserDelete, detail, nil, risk.Context{
				LocalTime: now.In(s.location),
				BatchSize: len(ids),
			})
			if _, err := auditor.Record(ctx, audit.RecordInput{
				ActorID:    actorRef(actor),
				Action:     enums.AuditActionUserDelete,
				EntityType: "user",
				EntityID:   user.ID.String(),
				Detail:     detail,
				Provenance: audit.Provenance{SourceAddr: actor.SourceAddr, ClientAgent: actor.ClientAgent},
				RiskTags:   tags,
			}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	return users, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

// Authenticate verifies credentials and stamps the login time. It returns the
// same error for a missing account and a wrong password.
func (s *service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp login")
	}
	return user, nil
}

// actorRef keeps system-initiated actions (bootstrap) actorless.
func actorRef(actor types.Actor) *uuid.UUID {
	if actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}
