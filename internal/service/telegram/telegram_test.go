package telegram

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"saot-service/internal/repository/memory"
)

func newBotService() (*Service, *memory.AccountRepository) {
	accounts := memory.NewAccountRepository()
	// Empty token: outbound messages are dropped, which is what tests want.
	return NewService(accounts, "", zap.NewNop()), accounts
}

func update(username, text string) *Update {
	return &Update{
		UpdateID: 1,
		Message: &Message{
			From: &User{ID: 42, FirstName: "Alice", Username: username},
			Chat: Chat{ID: 42},
			Text: text,
		},
	}
}

func TestHandleUpdate_DeepLinkPurchase(t *testing.T) {
	svc, accounts := newBotService()

	svc.HandleUpdate(context.Background(), update("alice", "/start course_go-basics_490000"))

	acc, err := accounts.FindByIdentifier(context.Background(), "alice")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if !acc.HasPaidCourse("go-basics") {
		t.Fatalf("paid courses = %v, want go-basics", acc.PaidCourses)
	}
}

func TestHandleUpdate_BuyCommand(t *testing.T) {
	svc, accounts := newBotService()

	svc.HandleUpdate(context.Background(), update("alice", "/buy_react-advanced"))
	// Buying twice must not duplicate the entitlement.
	svc.HandleUpdate(context.Background(), update("alice", "/buy_react-advanced"))

	acc, err := accounts.FindByIdentifier(context.Background(), "alice")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if len(acc.PaidCourses) != 1 || acc.PaidCourses[0] != "react-advanced" {
		t.Fatalf("paid courses = %v, want exactly [react-advanced]", acc.PaidCourses)
	}
}

func TestHandleUpdate_PlainStartCreatesNoPurchase(t *testing.T) {
	svc, accounts := newBotService()

	svc.HandleUpdate(context.Background(), update("alice", "/start"))

	acc, err := accounts.FindByIdentifier(context.Background(), "alice")
	if err != nil {
		// Plain /start only greets; account creation happens on demand.
		return
	}
	if len(acc.PaidCourses) != 0 {
		t.Fatalf("paid courses = %v, want none", acc.PaidCourses)
	}
}

func TestHandleUpdate_IgnoresNonMessages(t *testing.T) {
	svc, _ := newBotService()
	// Must not panic on service updates without a message.
	svc.HandleUpdate(context.Background(), &Update{UpdateID: 7})
}

func TestParsePurchasePayload(t *testing.T) {
	cases := []struct {
		payload string
		course  string
		ok      bool
	}{
		{"course_go-basics_490000", "go-basics", true},
		{"course_data_science_101_750000", "data_science_101", true},
		{"course_x", "", false},
		{"ref_12345", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		course, ok := parsePurchasePayload(tc.payload)
		if course != tc.course || ok != tc.ok {
			t.Errorf("parsePurchasePayload(%q) = %q, %v; want %q, %v", tc.payload, course, ok, tc.course, tc.ok)
		}
	}
}
