package account

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

const MaxNameLength = 100

// Service defines the account use cases.
type Service interface {
	Register(ctx context.Context, name string) (Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
}

type service struct {
	repo Repository
}

// NewService creates a new account service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, name string) (Account, error) {
	const op = "account.service.Register"

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Account{}, errx.E(op, errx.Invalid, err)
	}

	created, err := s.repo.Create(ctx, Account{Name: name})
	if err != nil {
		return Account{}, errx.Wrap(op, err)
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	const op = "account.service.Get"

	if id == uuid.Nil {
		return Account{}, errx.E(op, errx.Invalid, errors.New("account id cannot be empty"))
	}

	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, errx.Wrap(op, err)
	}
	return account, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.New("name too long (maximum 100 characters)")
	}
	return nil
}
