package handlers

import (
	"strings"
	"testing"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
)

func TestRenderDraftSummary(t *testing.T) {
	draft := &intake.Draft{
		Fields: intake.Fields{
			OrderTypeLabel: "📝 Домашнее задание",
			Subject:        "Математика",
			Description:    "Решить 10 задач",
			ExtraNotes:     "нет",
			Deadline:       "",
			Budget:         "1500",
		},
	}

	got := renderDraftSummary(draft)

	if !strings.HasPrefix(got, confirmationTitle) {
		t.Fatalf("summary must start with the confirmation title, got %q", got)
	}
	for _, want := range []string{"📝 Домашнее задание", "Математика", "Решить 10 задач", "1500"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "⏰ Дедлайн: —") {
		t.Fatalf("empty deadline must render as dash:\n%s", got)
	}
}

func TestRenderGroupMessage(t *testing.T) {
	order := &domain.Order{
		ID: 7,
		Requester: domain.UserRef{
			ID:        42,
			Username:  "student",
			FirstName: "Иван",
			LastName:  "Иванов",
		},
		Type:          "📝 Домашнее задание",
		Subject:       "Физика",
		Description:   "Лабораторная",
		Budget:        "2000",
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentNotRequested,
	}

	got := renderGroupMessage(order, "")

	for _, want := range []string{
		"🆕 НОВЫЙ ЗАКАЗ #7",
		"📚 Предмет: Физика",
		"📌 Статус: pending",
		"💳 Оплата: not_requested",
		"ID: 42",
		"Username: @student",
		"Имя: Иван Иванов",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("group message missing %q:\n%s", want, got)
		}
	}
	// Optional fields render as a dash, never as an empty tail.
	if !strings.Contains(got, "💡 Доп. информация: —") {
		t.Fatalf("empty extra notes must render as dash:\n%s", got)
	}
}

func TestRenderGroupMessage_ExtraBlock(t *testing.T) {
	order := &domain.Order{
		ID:            3,
		Requester:     domain.UserRef{ID: 42},
		Type:          "💼 Проект",
		Subject:       "Базы данных",
		Budget:        "5000",
		Status:        domain.StatusAwaitingDeclineReason,
		PaymentStatus: domain.PaymentNotRequested,
	}

	got := renderGroupMessage(order, declinePendingBlock("executor"))

	if !strings.HasSuffix(got, "⏳ Ожидается причина отклонения от @executor") {
		t.Fatalf("extra block must trail the announcement:\n%s", got)
	}
	// No username means a dash in the contact block.
	if !strings.Contains(got, "Username: —") {
		t.Fatalf("missing username must render as dash:\n%s", got)
	}
}

func TestRenderStats(t *testing.T) {
	counts := map[domain.OrderStatus]int{
		domain.StatusPending:    3,
		domain.StatusInProgress: 1,
	}

	got := renderStats(counts, 25)

	for _, want := range []string{"Пользователей: 25", "Всего заказов: 4", "⏳ Ожидают: 3", "🛠 В работе: 1", "✅ Выполнено: 0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats missing %q:\n%s", want, got)
		}
	}
}

func TestRenderAdminList(t *testing.T) {
	admins := []domain.Admin{
		{UserID: 1, Username: "root"},
		{UserID: 2, FirstName: "Пётр", LastName: "Петров"},
		{UserID: 3},
	}

	got := renderAdminList(admins)

	for _, want := range []string{"• 1 (root)", "• 2 (Пётр Петров)", "• 3 (—)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("admin list missing %q:\n%s", want, got)
		}
	}
}
