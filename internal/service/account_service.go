package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type AccountService struct {
	accounts repository.AccountRepository
	media    storage.ObjectStore
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func NewAccountService(accounts repository.AccountRepository, media storage.ObjectStore) *AccountService {
	return &AccountService{accounts: accounts, media: media}
}

// Register validates the credentials and creates the account together with
// its profile.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	account := &models.Account{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks a username/password pair.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return account, nil
}

// Resolve turns an authenticated account id into a Requester.
func (s *AccountService) Resolve(ctx context.Context, accountID uint) (policy.Requester, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return policy.Anonymous, models.NewUnauthorizedError("")
		}
		return policy.Anonymous, err
	}
	r := policy.Requester{
		AccountID: account.ID,
		Username:  account.Username,
		IsAdmin:   account.IsAdmin,
	}
	if account.Profile != nil {
		r.ProfileID = account.Profile.ID
	}
	return r, nil
}

func (s *AccountService) Me(ctx context.Context, r policy.Requester) (*models.Account, error) {
	if err := policy.Authorize(r, policy.AccountMe, 0); err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, r.AccountID)
}

func (s *AccountService) List(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[models.Account], error) {
	if err := policy.Authorize(r, policy.AccountList, 0); err != nil {
		return models.Page[models.Account]{}, err
	}
	rows, err := s.accounts.List(ctx, page)
	if err != nil {
		return models.Page[models.Account]{}, err
	}
	return models.NewPage(page, rows), nil
}

// Delete removes an account and everything its profile owns.
func (s *AccountService) Delete(ctx context.Context, r policy.Requester, id uint) error {
	if !r.Authenticated() {
		return models.NewUnauthorizedError("")
	}
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var ownerProfileID uint
	if account.Profile != nil {
		ownerProfileID = account.Profile.ID
	}
	if err := policy.Authorize(r, policy.AccountDestroy, ownerProfileID); err != nil {
		return err
	}

	keys, err := s.accounts.Delete(ctx, id)
	if err != nil {
		return err
	}
	removeObjects(ctx, s.media, keys)
	return nil
}

// EnsureAdmin creates the account if needed and grants it admin rights.
func (s *AccountService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, in.Username)
	switch {
	case err == nil:
	case models.IsCode(err, models.CodeNotFound):
		account, err = s.Register(ctx, in)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if account.IsAdmin {
		return account, nil
	}
	if err := s.accounts.SetAdmin(ctx, account.ID, true); err != nil {
		return nil, err
	}
	account.IsAdmin = true
	return account, nil
}
