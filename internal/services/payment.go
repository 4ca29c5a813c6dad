package services

import (
	"context"
	"errors"

	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/payments"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount       = apperr.New(apperr.KindInvalidInput, "Invalid amount")
	ErrPaymentNotFound     = apperr.New(apperr.KindNotFound, "Payment intent not found")
	ErrPaymentsUnavailable = apperr.New(apperr.KindUnavailable, "Payments are not configured.")
)

// PaymentRepository defines persistence operations for payment intents.
type PaymentRepository interface {
	Create(ctx context.Context, payment types.Payment) (types.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (types.Payment, error)
	List(ctx context.Context) ([]types.Payment, error)
}

// PaymentGateway creates payment intents with the payment provider.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (payments.Intent, error)
}

type PaymentService struct {
	repo     PaymentRepository
	gateway  PaymentGateway
	currency string
	logger   *zap.Logger
}

// NewPaymentService builds the service. A nil gateway disables intent
// creation.
func NewPaymentService(repo PaymentRepository, gateway PaymentGateway, currency string, logger *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{repo: repo, gateway: gateway, currency: currency, logger: logger}
}

// CreateIntent opens a card payment intent for amount, in the smallest
// currency unit, and records it.
func (s *PaymentService) CreateIntent(ctx context.Context, amount int64) (types.Payment, error) {
	if amount <= 0 {
		return types.Payment{}, ErrInvalidAmount
	}
	if s.gateway == nil {
		return types.Payment{}, ErrPaymentsUnavailable
	}

	intent, err := s.gateway.CreateIntent(ctx, amount, s.currency)
	if err != nil {
		return types.Payment{}, apperr.Wrap(apperr.KindInternal, "Error creating payment intent", err)
	}

	payment, err := s.repo.Create(ctx, types.Payment{
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        s.currency,
		ClientSecret:    intent.ClientSecret,
	})
	if err != nil {
		s.logger.Error("Payment intent created but not recorded", zap.String("intent_id", intent.ID), zap.Error(err))
		return types.Payment{}, apperr.Internal(err)
	}
	return payment, nil
}

func (s *PaymentService) Get(ctx context.Context, intentID string) (types.Payment, error) {
	payment, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Payment{}, ErrPaymentNotFound
		}
		return types.Payment{}, apperr.Internal(err)
	}
	return payment, nil
}

func (s *PaymentService) List(ctx context.Context) ([]types.Payment, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if list == nil {
		list = []types.Payment{}
	}
	return list, nil
}
