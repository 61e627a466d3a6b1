package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pilatesguru/studio-bot/internal/domain/assistant"
	"github.com/pilatesguru/studio-bot/internal/domain/booking"
	"github.com/pilatesguru/studio-bot/internal/domain/manage"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
	"github.com/pilatesguru/studio-bot/internal/pkg/yookassa"
)

type memoryStore struct {
	states map[string]*session.State
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: map[string]*session.State{}}
}

func (m *memoryStore) Get(ctx context.Context, userID string) (*session.State, error) {
	if st, ok := m.states[userID]; ok {
		return st, nil
	}
	return &session.State{}, nil
}

func (m *memoryStore) Save(ctx context.Context, userID string, st *session.State) error {
	m.states[userID] = st
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, userID string) error {
	delete(m.states, userID)
	return nil
}

type fakeCatalog struct {
	services []yclients.Service
	staff    []yclients.Staff
	dates    []string
	slots    []yclients.Slot
	created  []yclients.CreateRecordRequest
}

func (f *fakeCatalog) ListServices(ctx context.Context, staffID int64) ([]yclients.Service, error) {
	return f.services, nil
}

func (f *fakeCatalog) ListStaff(ctx context.Context, serviceID int64) ([]yclients.Staff, error) {
	return f.staff, nil
}

func (f *fakeCatalog) ListDates(ctx context.Context, staffID, serviceID int64) ([]string, error) {
	return f.dates, nil
}

func (f *fakeCatalog) ListTimes(ctx context.Context, staffID int64, date string, serviceID int64) ([]yclients.Slot, error) {
	return f.slots, nil
}

func (f *fakeCatalog) CreateRecord(ctx context.Context, req yclients.CreateRecordRequest) (int64, error) {
	f.created = append(f.created, req)
	return 4242, nil
}

func (f *fakeCatalog) ListClientRecords(ctx context.Context, phone string, from, to time.Time) ([]yclients.Record, error) {
	return nil, nil
}

func (f *fakeCatalog) CancelRecord(ctx context.Context, recordID int64) error { return nil }

func (f *fakeCatalog) RescheduleRecord(ctx context.Context, recordID, staffID, serviceID int64, datetime string) error {
	return nil
}

type fakePayments struct{}

func (fakePayments) CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest) (*yookassa.Payment, error) {
	return &yookassa.Payment{ID: "pay-1", Status: yookassa.StatusPending, ConfirmationURL: "https://pay.example/x"}, nil
}

func (fakePayments) CheckPayment(ctx context.Context, paymentID string) (string, error) {
	return yookassa.StatusSucceeded, nil
}

type fakeLookup struct {
	client *yclients.ClientInfo
}

func (f *fakeLookup) FindClientByPhone(ctx context.Context, phone string) (*yclients.ClientInfo, error) {
	return f.client, nil
}

type capturedSend struct {
	chatID string
	p      prompt.Prompt
}

type fakeAdmin struct {
	sent []capturedSend
}

func (f *fakeAdmin) Send(ctx context.Context, chatID string, p prompt.Prompt) error {
	f.sent = append(f.sent, capturedSend{chatID, p})
	return nil
}

func testConversation(t *testing.T, catalog *fakeCatalog, lookup *fakeLookup) (*Service, *memoryStore) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	store := newMemoryStore()
	bookingSvc := booking.NewService(catalog, fakePayments{}, "https://t.me/studio_bot", loc)
	manageSvc := manage.NewService(catalog, 20, loc)
	assistSvc := assistant.NewService(nil)
	return NewService(store, bookingSvc, manageSvc, assistSvc, lookup), store
}

func handleOne(t *testing.T, svc *Service, ev Event) prompt.Prompt {
	t.Helper()
	prompts, err := svc.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(prompts))
	}
	return prompts[0]
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"9001234567", "+79001234567"},
		{"79001234567", "+79001234567"},
		{"+7 (900) 123-45-67", "+79001234567"},
		{"7 900 123 45 67", "+79001234567"},
		{"no digits", ""},
		{"", ""},
		{"+1 212 555 0142", "+12125550142"},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStartCommand(t *testing.T) {
	svc, store := testConversation(t, &fakeCatalog{}, &fakeLookup{})
	store.states["u1"] = &session.State{Step: session.StepName}

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "/start"})
	if !strings.Contains(p.Text, "Меня зовут Марина") {
		t.Fatalf("unexpected greeting: %q", p.Text)
	}
	if store.states["u1"].Step != session.StepIdle {
		t.Fatalf("start must reset the flow, got %q", store.states["u1"].Step)
	}
}

func TestContactExistingClient(t *testing.T) {
	lookup := &fakeLookup{client: &yclients.ClientInfo{Name: "Ivan Petrov", Phone: "+79001234567"}}
	svc, store := testConversation(t, &fakeCatalog{}, lookup)

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindContact, Payload: "8 (900) 123-45-67"})
	if !strings.Contains(p.Text, "Рада вас снова видеть, Ivan!") {
		t.Fatalf("unexpected greeting: %q", p.Text)
	}

	st := store.states["u1"]
	if st.ClientPhone != "+79001234567" {
		t.Fatalf("phone not normalized: %q", st.ClientPhone)
	}
	if st.ClientName != "Ivan" {
		t.Fatalf("client name not stored: %q", st.ClientName)
	}
}

func TestContactNewClientOnboarding(t *testing.T) {
	svc, store := testConversation(t, &fakeCatalog{}, &fakeLookup{})

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindContact, Payload: "9001234567"})
	if !strings.Contains(p.Text, "вы у нас впервые") {
		t.Fatalf("unexpected reply: %q", p.Text)
	}
	if store.states["u1"].Step != session.StepOnboardGoals {
		t.Fatalf("expected goals step, got %q", store.states["u1"].Step)
	}

	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "здоровая спина"})
	if !strings.Contains(p.Text, "травмы") {
		t.Fatalf("expected injuries question, got %q", p.Text)
	}

	// Without an API key the welcome is the fixed invitation.
	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "нет"})
	if !strings.Contains(p.Text, "Рады видеть вас в Pilates Guru") {
		t.Fatalf("unexpected welcome: %q", p.Text)
	}

	st := store.states["u1"]
	if st.Step != session.StepIdle || st.OnboardGoals != "" {
		t.Fatalf("onboarding scratch must be cleared: step=%q goals=%q", st.Step, st.OnboardGoals)
	}
	if st.ClientPhone != "+79001234567" {
		t.Fatalf("phone must survive onboarding: %q", st.ClientPhone)
	}
}

func TestButtonRoutesIntoBookingFlow(t *testing.T) {
	catalog := &fakeCatalog{
		services: []yclients.Service{{ID: 1, Title: "Personal Training", Price: 3500}},
		staff:    []yclients.Staff{{ID: 2, Name: "Anna"}},
	}
	svc, store := testConversation(t, catalog, &fakeLookup{})

	handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "menu:booking"})
	if store.states["u1"].Step != session.StepService {
		t.Fatalf("expected service step, got %q", store.states["u1"].Step)
	}

	handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "svc:1"})
	if store.states["u1"].Step != session.StepStaff {
		t.Fatalf("expected staff step, got %q", store.states["u1"].Step)
	}
}

func TestFreeTextRoutedByStep(t *testing.T) {
	svc, store := testConversation(t, &fakeCatalog{}, &fakeLookup{})
	store.states["u1"] = &session.State{Step: session.StepName}

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "  Ivan Petrov  "})
	if store.states["u1"].Draft.Fullname != "Ivan Petrov" {
		t.Fatalf("name not captured: %q", store.states["u1"].Draft.Fullname)
	}
	if store.states["u1"].Step != session.StepPhone {
		t.Fatalf("expected phone step, got %q", store.states["u1"].Step)
	}

	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "8 900 123-45-67"})
	if !strings.Contains(p.Text, "email") {
		t.Fatalf("expected email question, got %q", p.Text)
	}
	if store.states["u1"].Draft.Phone != "+79001234567" {
		t.Fatalf("phone not normalized into draft: %q", store.states["u1"].Draft.Phone)
	}
}

func TestRepeatedPaymentCheckBooksOnce(t *testing.T) {
	catalog := &fakeCatalog{}
	svc, store := testConversation(t, catalog, &fakeLookup{})
	store.states["u1"] = &session.State{
		Step: session.StepConfirm,
		Draft: session.Draft{
			ServiceID:    1,
			ServiceTitle: "Personal Training",
			Price:        3500,
			StaffID:      2,
			Datetime:     "2025-06-15 11:30:00",
			Fullname:     "Ivan Petrov",
			Phone:        "+79001234567",
		},
	}

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "confirm"})
	if store.states["u1"].Step != session.StepPayment {
		t.Fatalf("expected payment step, got %q", store.states["u1"].Step)
	}
	if !strings.Contains(p.Text, "Оплатите 3500 ₽") {
		t.Fatalf("unexpected payment prompt: %q", p.Text)
	}

	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "pay:check:pay-1"})
	if !strings.Contains(p.Text, "Запись создана") {
		t.Fatalf("unexpected reply: %q", p.Text)
	}
	if len(catalog.created) != 1 {
		t.Fatalf("expected one reservation, got %d", len(catalog.created))
	}
	if store.states["u1"].Step != session.StepIdle {
		t.Fatalf("success must reset the flow, got %q", store.states["u1"].Step)
	}

	// A replayed press after success alerts and never books again.
	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "pay:check:pay-1"})
	if !p.Alert {
		t.Fatalf("replayed check must alert, got %+v", p)
	}
	if len(catalog.created) != 1 {
		t.Fatalf("replay must not create a second reservation, got %d", len(catalog.created))
	}
}

func TestStaleButtonPress(t *testing.T) {
	svc, _ := testConversation(t, &fakeCatalog{}, &fakeLookup{})

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "svc:1"})
	if !p.Alert {
		t.Fatalf("stale press must alert, got %+v", p)
	}

	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "time:0"})
	if !p.Alert {
		t.Fatalf("stale press must alert, got %+v", p)
	}
}

func TestFreeTextFallsBackToAssistant(t *testing.T) {
	svc, _ := testConversation(t, &fakeCatalog{}, &fakeLookup{})

	// No generator configured, so the degraded assistant reply comes back.
	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "сколько стоит занятие?"})
	if !strings.Contains(p.Text, "кнопкой меню") {
		t.Fatalf("unexpected fallback: %q", p.Text)
	}
}

func TestReminderConfirmButton(t *testing.T) {
	svc, _ := testConversation(t, &fakeCatalog{}, &fakeLookup{})

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "rec:ok:7"})
	if !strings.Contains(p.Text, "ждём вас") {
		t.Fatalf("unexpected reply: %q", p.Text)
	}
}

func TestFeedbackFlowForwardsToAdmin(t *testing.T) {
	svc, store := testConversation(t, &fakeCatalog{}, &fakeLookup{})
	admin := &fakeAdmin{}
	svc.WithAdminForwarding(admin, "admin-chat")

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "fb:bad:77"})
	if !strings.Contains(p.Text, "Жаль, что что-то пошло не так") {
		t.Fatalf("unexpected reply: %q", p.Text)
	}
	if store.states["u1"].FeedbackRecordID != 77 {
		t.Fatalf("record id not stored: %d", store.states["u1"].FeedbackRecordID)
	}

	handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "fb:write"})
	if store.states["u1"].Step != session.StepFeedbackText {
		t.Fatalf("expected feedback text step, got %q", store.states["u1"].Step)
	}

	p = handleOne(t, svc, Event{UserID: "u1", Kind: KindText, Payload: "было холодно в зале"})
	if !strings.Contains(p.Text, "Спасибо, что написали") {
		t.Fatalf("unexpected reply: %q", p.Text)
	}
	if len(admin.sent) != 1 || admin.sent[0].chatID != "admin-chat" {
		t.Fatalf("feedback not forwarded: %+v", admin.sent)
	}
	if !strings.Contains(admin.sent[0].p.Text, "#77") || !strings.Contains(admin.sent[0].p.Text, "было холодно в зале") {
		t.Fatalf("forwarded text incomplete: %q", admin.sent[0].p.Text)
	}
	if store.states["u1"].Step != session.StepIdle {
		t.Fatalf("feedback flow must reset, got %q", store.states["u1"].Step)
	}
}

func TestFeedbackGoodShowsReviewLinks(t *testing.T) {
	svc, _ := testConversation(t, &fakeCatalog{}, &fakeLookup{})

	p := handleOne(t, svc, Event{UserID: "u1", Kind: KindButton, Payload: "fb:good:77"})
	if len(p.Choices) != 3 {
		t.Fatalf("expected two links and a skip button, got %+v", p.Choices)
	}
	if p.Choices[0].URL == "" || p.Choices[1].URL == "" {
		t.Fatalf("review links missing: %+v", p.Choices)
	}
	if p.Choices[2].Token != "fb:skip" {
		t.Fatalf("unexpected skip token %q", p.Choices[2].Token)
	}
}
