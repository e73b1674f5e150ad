package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

type AccountService interface {
	AddAccount(ctx context.Context, ac *transfer.AccountCreation) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
}

type accountService struct {
	ar repository.AccountRepository
}

func NewAccountService(ar repository.AccountRepository) AccountService {
	return &accountService{ar: ar}
}

// AddAccount stores an account with a session obtained out of band.
func (s *accountService) AddAccount(ctx context.Context, ac *transfer.AccountCreation) (*models.Account, error) {
	if ac == nil {
		return nil, fmt.Errorf("%w: account data is nil", ErrInvalidInput)
	}
	username := strings.TrimPrefix(strings.TrimSpace(ac.Username), "@")
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(ac.Session) == 0 {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidInput)
	}

	account := &models.Account{
		Username:   username,
		Session:    models.Session(ac.Session),
		ProfilePic: ac.ProfilePic,
		IsActive:   true,
	}
	if _, err := s.ar.Create(ctx, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return account, nil
}

func (s *accountService) List(ctx context.Context) ([]*models.Account, error) {
	return s.ar.List(ctx)
}
