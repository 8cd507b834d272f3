// internal/service/payment/mock.go
package payment

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MockProvider completes every payment immediately. Used in tests and demo
// environments.
type MockProvider struct {
	mu        sync.Mutex
	completed map[string]bool
}

func NewMockProvider() *MockProvider {
	return &MockProvider{completed: make(map[string]bool)}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) InitiatePayment(_ context.Context, req *Request) (*Result, error) {
	id := ulid.Make().String()
	p.mu.Lock()
	p.completed[id] = true
	p.mu.Unlock()
	return &Result{
		RedirectURL:   "https://example.com/paid/" + req.CourseID,
		TransactionID: id,
		Provider:      p.Name(),
	}, nil
}

func (p *MockProvider) VerifyPayment(_ context.Context, transactionID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed[transactionID], nil
}
