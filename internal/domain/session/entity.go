package session

import (
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

// Conversation steps. The front controller routes free text and button
// presses by the step a user is currently on.
const (
	StepIdle = ""

	StepService = "booking:service"
	StepStaff   = "booking:staff"
	StepDate    = "booking:date"
	StepTime    = "booking:time"
	StepName    = "booking:name"
	StepPhone   = "booking:phone"
	StepEmail   = "booking:email"
	StepConfirm = "booking:confirm"
	StepPayment = "booking:payment"

	StepManageList    = "manage:list"
	StepManageRecord  = "manage:record"
	StepManageCancel  = "manage:cancel"
	StepManageDate    = "manage:date"
	StepManageTime    = "manage:time"
	StepManageConfirm = "manage:confirm"

	StepMatchQ1 = "match:q1"
	StepMatchQ2 = "match:q2"
	StepMatchQ3 = "match:q3"

	StepFeedbackText = "feedback:text"

	StepOnboardGoals    = "onboard:goals"
	StepOnboardInjuries = "onboard:injuries"
)

const historyLimit = 6

// Draft accumulates one booking as the user walks the flow. Slots are
// cached so a "back" from the contact step can replay the time keyboard
// without re-fetching.
type Draft struct {
	ServiceID    int64            `json:"service_id"`
	ServiceTitle string           `json:"service_title"`
	Price        float64          `json:"price"`
	StaffID      int64            `json:"staff_id"`
	Date         string           `json:"date"`
	Slots        []yclients.Slot  `json:"slots,omitempty"`
	Datetime     string           `json:"datetime"`
	Fullname     string           `json:"fullname"`
	Phone        string           `json:"phone"`
	Email        string           `json:"email"`
	PaymentID    string           `json:"payment_id"`
	Services     []BookingService `json:"services,omitempty"`
}

// BookingService is the slim service option cached in the draft so the
// service keyboard can be replayed on back navigation.
type BookingService struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Manage is the scratch area of the cancel/reschedule flow. Records are
// cached so a picked record can be resolved without re-fetching.
type Manage struct {
	Records   []yclients.Record `json:"records,omitempty"`
	RecordID  int64             `json:"record_id"`
	StaffID   int64             `json:"staff_id"`
	ServiceID int64             `json:"service_id"`
	StartUnix int64             `json:"start_unix"`
	Date      string            `json:"date"`
	Slots     []yclients.Slot   `json:"slots,omitempty"`
	Datetime  string            `json:"datetime"`
}

// Turn is one dialog exchange kept for assistant context.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// State is everything remembered about one user between events.
type State struct {
	Step   string `json:"step"`
	Draft  Draft  `json:"draft"`
	Manage Manage `json:"manage"`

	// Durable profile fields, preserved across flow resets.
	ClientName       string `json:"client_name"`
	ClientPhone      string `json:"client_phone"`
	PreferredTrainer string `json:"preferred_trainer"`
	LateCancels      int    `json:"late_cancels"`

	// Trainer match questionnaire answers.
	MatchAnswers []string `json:"match_answers,omitempty"`

	// Record awaiting a written review after a negative rating.
	FeedbackRecordID int64 `json:"feedback_record_id,omitempty"`

	// New-client questionnaire scratch.
	OnboardGoals string `json:"onboard_goals,omitempty"`

	History []Turn `json:"history,omitempty"`
}

// Reset drops the in-flight flow but keeps the durable profile and the
// dialog history.
func (s *State) Reset() {
	s.Step = StepIdle
	s.Draft = Draft{}
	s.Manage = Manage{}
	s.MatchAnswers = nil
	s.FeedbackRecordID = 0
	s.OnboardGoals = ""
}

// PushHistory appends a dialog turn, keeping only the most recent ones.
func (s *State) PushHistory(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}
