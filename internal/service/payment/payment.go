// internal/service/payment/payment.go
package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	xerrors "saot-service/internal/pkg/errors"
)

// Request describes a purchase to initiate. Course fields pass through
// verbatim; this service owns no course catalogue.
type Request struct {
	CourseID   string  `json:"course_id" binding:"required"`
	CourseName string  `json:"course_name"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	AccountID  string  `json:"-"`
}

// Result is what the caller needs to continue the purchase: where to send
// the user and how to correlate the transaction later.
type Result struct {
	RedirectURL   string `json:"redirect_url"`
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
}

// Provider initiates payments with a specific upstream.
type Provider interface {
	Name() string
	InitiatePayment(ctx context.Context, req *Request) (*Result, error)
	VerifyPayment(ctx context.Context, transactionID string) (bool, error)
}

// Service keeps a provider registry with a default.
type Service struct {
	providers   map[string]Provider
	defaultName string
	logger      *zap.Logger
}

func NewService(defaultProvider Provider, logger *zap.Logger) *Service {
	s := &Service{
		providers:   make(map[string]Provider),
		defaultName: defaultProvider.Name(),
		logger:      logger,
	}
	s.Register(defaultProvider)
	return s
}

func (s *Service) Register(p Provider) {
	s.providers[p.Name()] = p
}

// Initiate runs the purchase through the named provider, or the default
// when name is empty.
func (s *Service) Initiate(ctx context.Context, name string, req *Request) (*Result, error) {
	if name == "" {
		name = s.defaultName
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q: %w", name, xerrors.ErrInvalidInput)
	}

	res, err := p.InitiatePayment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("initiate payment via %s: %w", name, err)
	}

	s.logger.Info("payment initiated",
		zap.String("provider", name),
		zap.String("course_id", req.CourseID),
		zap.Float64("amount", req.Amount),
		zap.String("transaction_id", res.TransactionID),
	)
	return res, nil
}

func (s *Service) Verify(ctx context.Context, name, transactionID string) (bool, error) {
	if name == "" {
		name = s.defaultName
	}
	p, ok := s.providers[name]
	if !ok {
		return false, fmt.Errorf("unknown payment provider %q: %w", name, xerrors.ErrInvalidInput)
	}
	return p.VerifyPayment(ctx, transactionID)
}
