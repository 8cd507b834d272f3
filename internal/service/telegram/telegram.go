// internal/service/telegram/telegram.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"saot-service/internal/domain/account"
	xerrors "saot-service/internal/pkg/errors"
)

// Update is the subset of the Bot API webhook payload this service reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}

const apiBase = "https://api.telegram.org"

// Service handles bot webhook updates: deep-linked purchases, direct buys
// and course listings. Purchases land in the account store as entitlement
// changes, which device reconciliation later picks up.
type Service struct {
	accounts account.Store
	token    string
	client   *http.Client
	apiURL   string
	logger   *zap.Logger
}

func NewService(accounts account.Store, token string, logger *zap.Logger) *Service {
	return &Service{
		accounts: accounts,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   apiBase,
		logger:   logger,
	}
}

// HandleUpdate routes one webhook update. Unknown commands get a help reply;
// errors are reported to the chat and logged, never returned to Telegram
// (a non-200 would make it redeliver the update forever).
func (s *Service) HandleUpdate(ctx context.Context, upd *Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	text := strings.TrimSpace(msg.Text)

	var err error
	switch {
	case strings.HasPrefix(text, "/start"):
		err = s.handleStart(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
	case strings.HasPrefix(text, "/buy_"):
		err = s.handleBuy(ctx, msg, strings.TrimPrefix(text, "/buy_"))
	case text == "/my_courses":
		err = s.handleMyCourses(ctx, msg)
	default:
		err = s.send(ctx, msg.Chat.ID, "Commands:\n/my_courses - your purchased courses\n/buy_<course> - buy a course")
	}

	if err != nil {
		s.logger.Error("telegram update failed",
			zap.Int64("update_id", upd.UpdateID),
			zap.String("text", text),
			zap.Error(err),
		)
		if sendErr := s.send(ctx, msg.Chat.ID, "Something went wrong, please try again."); sendErr != nil {
			s.logger.Error("telegram error reply failed", zap.Error(sendErr))
		}
	}
}

// handleStart welcomes the user, or completes a purchase when the deep-link
// payload carries one (course_<id>_<amount>).
func (s *Service) handleStart(ctx context.Context, msg *Message, payload string) error {
	if courseID, ok := parsePurchasePayload(payload); ok {
		return s.recordPurchase(ctx, msg, courseID)
	}
	return s.send(ctx, msg.Chat.ID, fmt.Sprintf("Hello, %s! Use /my_courses to see your courses.", msg.From.FirstName))
}

func (s *Service) handleBuy(ctx context.Context, msg *Message, courseID string) error {
	if courseID == "" {
		return s.send(ctx, msg.Chat.ID, "Usage: /buy_<course>")
	}
	return s.recordPurchase(ctx, msg, courseID)
}

func (s *Service) handleMyCourses(ctx context.Context, msg *Message) error {
	acc, err := s.findOrCreateAccount(ctx, msg.From)
	if err != nil {
		return err
	}
	if len(acc.PaidCourses) == 0 {
		return s.send(ctx, msg.Chat.ID, "You have no courses yet. Use /buy_<course> to get one.")
	}

	var b strings.Builder
	b.WriteString("Your courses:\n")
	for _, id := range acc.PaidCourses {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	return s.send(ctx, msg.Chat.ID, b.String())
}

func (s *Service) recordPurchase(ctx context.Context, msg *Message, courseID string) error {
	acc, err := s.findOrCreateAccount(ctx, msg.From)
	if err != nil {
		return err
	}

	if acc.HasPaidCourse(courseID) {
		return s.send(ctx, msg.Chat.ID, fmt.Sprintf("You already own %s.", courseID))
	}

	enrolled := append(append([]string{}, acc.EnrolledCourses...), courseID)
	paid := append(append([]string{}, acc.PaidCourses...), courseID)
	if err := s.accounts.SetEntitlements(ctx, acc.ID, enrolled, paid); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}

	s.logger.Info("bot purchase recorded",
		zap.String("account_id", acc.ID),
		zap.String("course_id", courseID),
	)
	return s.send(ctx, msg.Chat.ID, fmt.Sprintf("Purchase confirmed: %s. It will appear on your devices shortly.", courseID))
}

// findOrCreateAccount resolves the sender to a platform account by telegram
// username, creating a password-less bot account on first contact.
func (s *Service) findOrCreateAccount(ctx context.Context, from *User) (*account.Account, error) {
	if from.Username == "" {
		return nil, fmt.Errorf("sender has no telegram username: %w", xerrors.ErrInvalidInput)
	}

	acc, err := s.accounts.FindByIdentifier(ctx, from.Username)
	if err == nil {
		return acc, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("lookup telegram account: %w", err)
	}

	acc = &account.Account{
		ID:               ulid.Make().String(),
		Name:             from.FirstName,
		TelegramUsername: from.Username,
		Role:             account.RoleUser,
		EnrolledCourses:  []string{},
		PaidCourses:      []string{},
		Progress:         map[string]int{},
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("create telegram account: %w", err)
	}

	s.logger.Info("created account from telegram", zap.String("account_id", acc.ID), zap.String("username", from.Username))
	return acc, nil
}

// parsePurchasePayload extracts the course id from a course_<id>_<amount>
// deep-link payload. Course ids may themselves contain underscores; the
// trailing segment is the amount.
func parsePurchasePayload(payload string) (string, bool) {
	if !strings.HasPrefix(payload, "course_") {
		return "", false
	}
	rest := strings.TrimPrefix(payload, "course_")
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// send posts a sendMessage call to the Bot API.
func (s *Service) send(ctx context.Context, chatID int64, text string) error {
	if s.token == "" {
		// No token configured (tests, local dev): drop outbound messages.
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage: unexpected status %d", resp.StatusCode)
	}
	return nil
}
