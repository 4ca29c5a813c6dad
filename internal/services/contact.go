package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
)

var ErrContactNotFound = apperr.New(apperr.KindNotFound, "Contact message not found.")

var contactFieldMessages = map[string]string{
	"name":    "Name is required.",
	"email":   "Valid email is required.",
	"phone":   "Valid phone number is required.",
	"message": "Message is required.",
}

// ContactRepository defines persistence operations for contact messages.
type ContactRepository interface {
	Create(ctx context.Context, contact types.Contact) (types.Contact, error)
	Get(ctx context.Context, id string) (types.Contact, error)
	List(ctx context.Context) ([]types.Contact, error)
}

type ContactInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"email"`
	Phone   string `json:"phone" validate:"phone"`
	Message string `json:"message" validate:"required"`
}

type ContactService struct {
	repo     ContactRepository
	validate *validator.Validate
}

func NewContactService(repo ContactRepository) *ContactService {
	return &ContactService{repo: repo, validate: newValidator()}
}

// Submit validates and stores a contact form message. Every failing field
// is reported.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (types.Contact, error) {
	in = ContactInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Message: strings.TrimSpace(in.Message),
	}
	if err := s.validate.Struct(in); err != nil {
		return types.Contact{}, apperr.Invalid("Validation failed.", fieldErrors(err, contactFieldMessages, "Invalid value.")...)
	}

	contact, err := s.repo.Create(ctx, types.Contact{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Message: in.Message,
	})
	if err != nil {
		return types.Contact{}, apperr.Internal(err)
	}
	return contact, nil
}

func (s *ContactService) Get(ctx context.Context, id string) (types.Contact, error) {
	contact, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Contact{}, ErrContactNotFound
		}
		return types.Contact{}, apperr.Internal(err)
	}
	return contact, nil
}

func (s *ContactService) List(ctx context.Context) ([]types.Contact, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if list == nil {
		list = []types.Contact{}
	}
	return list, nil
}
