// internal/service/payment/telegram.go
package payment

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// TelegramProvider redirects the buyer into a bot conversation carrying the
// course and amount in the deep-link payload. The URL is opaque to callers.
type TelegramProvider struct {
	botUsername string
}

func NewTelegramProvider(botUsername string) *TelegramProvider {
	return &TelegramProvider{botUsername: botUsername}
}

func (p *TelegramProvider) Name() string { return "telegram" }

func (p *TelegramProvider) InitiatePayment(_ context.Context, req *Request) (*Result, error) {
	if req.CourseID == "" {
		return nil, fmt.Errorf("course id is required")
	}
	return &Result{
		RedirectURL:   fmt.Sprintf("https://t.me/%s?start=course_%s_%.0f", p.botUsername, req.CourseID, req.Amount),
		TransactionID: ulid.Make().String(),
		Provider:      p.Name(),
	}, nil
}

// VerifyPayment cannot observe the bot conversation; the webhook records the
// purchase itself, so verification here always reports pending.
func (p *TelegramProvider) VerifyPayment(_ context.Context, _ string) (bool, error) {
	return false, nil
}
