package yclients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RecordStaff is the nested staff object inside a record.
type RecordStaff struct {
	ID   FlexInt `json:"id"`
	Name string  `json:"name"`
}

// Appointment is the nested appointment object some record payloads carry
// instead of flat staff/service fields.
type Appointment struct {
	StaffID    FlexInt      `json:"staff_id"`
	Staff      *RecordStaff `json:"staff"`
	Services   ServiceList  `json:"services"`
	ServiceIDs []FlexInt    `json:"service_ids"`
}

// Record is one existing reservation.
type Record struct {
	ID         FlexInt         `json:"id"`
	Datetime   json.RawMessage `json:"datetime"`
	Date       json.RawMessage `json:"date"`
	VisitStart json.RawMessage `json:"visit_start"`

	StaffID      FlexInt       `json:"staff_id"`
	StaffNameVal string        `json:"staff_name"`
	Staff        *RecordStaff  `json:"staff"`
	Services     ServiceList   `json:"services"`
	ServiceIDs   []FlexInt     `json:"service_ids"`
	Appointments []Appointment `json:"appointments"`

	Client     *ClientInfo `json:"client"`
	Deleted    bool        `json:"deleted"`
	Attendance int         `json:"attendance"`
}

// StartTime parses the record's scheduled start, trying datetime, date and
// visit_start in order, each of which may be a string or a Unix timestamp.
func (r Record) StartTime(loc *time.Location) (time.Time, bool) {
	for _, raw := range []json.RawMessage{r.Datetime, r.Date, r.VisitStart} {
		if t, ok := parseRecordTime(raw, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseRecordTime(raw json.RawMessage, loc *time.Location) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	if raw[0] != '"' {
		var ts float64
		if err := json.Unmarshal(raw, &ts); err != nil || ts == 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(ts), 0).In(loc), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = cleanDatetime(s)
	if len(s) > 19 {
		s = s[:19]
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StaffName returns a display name for the record's instructor.
func (r Record) StaffName() string {
	if r.Staff != nil && r.Staff.Name != "" {
		return r.Staff.Name
	}
	return r.StaffNameVal
}

// ServiceTitle returns a display title for the record's first service.
func (r Record) ServiceTitle() string {
	if len(r.Services) > 0 {
		return r.Services[0].Name()
	}
	return ""
}

// StaffServiceIDs resolves the staff and service identifiers needed for a
// reschedule. Payload nesting varies: the ids sit either flat on the record
// or inside appointments[0].
func (r Record) StaffServiceIDs() (staffID, serviceID int64, ok bool) {
	staffID = int64(r.StaffID)
	if staffID == 0 && r.Staff != nil {
		staffID = int64(r.Staff.ID)
	}
	if len(r.Services) > 0 {
		serviceID = r.Services[0].Key()
	}
	if serviceID == 0 && len(r.ServiceIDs) > 0 {
		serviceID = int64(r.ServiceIDs[0])
	}

	if staffID == 0 || serviceID == 0 {
		for _, app := range r.Appointments {
			if staffID == 0 {
				staffID = int64(app.StaffID)
				if staffID == 0 && app.Staff != nil {
					staffID = int64(app.Staff.ID)
				}
			}
			if serviceID == 0 && len(app.Services) > 0 {
				serviceID = app.Services[0].Key()
			}
			if serviceID == 0 && len(app.ServiceIDs) > 0 {
				serviceID = int64(app.ServiceIDs[0])
			}
			if staffID != 0 && serviceID != 0 {
				break
			}
		}
	}

	return staffID, serviceID, staffID != 0 && serviceID != 0
}

// Active reports whether the record still stands (not deleted, not marked
// as a cancelled visit).
func (r Record) Active() bool {
	return !r.Deleted && r.Attendance >= 0
}

// ChatID returns the chat-platform user id stored in the client's custom
// fields, if any.
func (r Record) ChatID() string {
	if r.Client == nil {
		return ""
	}
	return r.Client.CustomField("telegram_id")
}

// CreateRecordRequest carries everything needed to materialize a booking.
type CreateRecordRequest struct {
	Fullname  string
	Phone     string
	Email     string
	ServiceID int64
	StaffID   int64
	Datetime  string // canonical "YYYY-MM-DD HH:MM:SS"
	Comment   string
}

type appointmentPayload struct {
	ID           int     `json:"id"`
	Services     []int64 `json:"services"`
	StaffID      int64   `json:"staff_id"`
	Events       []int   `json:"events"`
	Datetime     string  `json:"datetime"`
	ChargeStatus string  `json:"chargeStatus"`
	Comment      string  `json:"comment"`
}

// CreateRecord creates a reservation and returns the new record id when the
// upstream reports one.
func (c *Client) CreateRecord(ctx context.Context, req CreateRecordRequest) (int64, error) {
	payload := map[string]interface{}{
		"phone":    req.Phone,
		"email":    req.Email,
		"fullname": req.Fullname,
		"appointments": []appointmentPayload{
			{
				ID:       1,
				Services: []int64{req.ServiceID},
				StaffID:  req.StaffID,
				Events:   []int{},
				Datetime: req.Datetime,
				Comment:  req.Comment,
			},
		},
	}

	data, err := c.request(ctx, http.MethodPost, "/book_record/"+c.companyID(), nil, payload)
	if err != nil {
		return 0, err
	}

	var created []struct {
		ID       FlexInt `json:"id"`
		RecordID FlexInt `json:"record_id"`
	}
	if err := json.Unmarshal(data, &created); err == nil && len(created) > 0 {
		if created[0].RecordID != 0 {
			return int64(created[0].RecordID), nil
		}
		return int64(created[0].ID), nil
	}
	return 0, nil
}

// CancelRecord cancels an existing reservation.
func (c *Client) CancelRecord(ctx context.Context, recordID int64) error {
	path := "/record/" + c.companyID() + "/" + strconv.FormatInt(recordID, 10)
	_, err := c.request(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// RescheduleRecord moves an existing reservation to a new datetime.
func (c *Client) RescheduleRecord(ctx context.Context, recordID, staffID, serviceID int64, datetime string) error {
	path := "/record/" + c.companyID() + "/" + strconv.FormatInt(recordID, 10)
	payload := map[string]interface{}{
		"staff_id": staffID,
		"services": []int64{serviceID},
		"datetime": datetime,
		"seance_length": 0,
	}
	_, err := c.request(ctx, http.MethodPut, path, nil, payload)
	return err
}

// FindClientByPhone looks up a studio client. A missing client is (nil, nil),
// not an error.
func (c *Client) FindClientByPhone(ctx context.Context, phone string) (*ClientInfo, error) {
	params := url.Values{}
	params.Set("phone", phone)

	data, err := c.request(ctx, http.MethodGet, "/clients/"+c.companyID(), params, nil)
	if err != nil {
		return nil, err
	}

	var clients []ClientInfo
	if err := json.Unmarshal(data, &clients); err != nil || len(clients) == 0 {
		return nil, nil
	}
	return &clients[0], nil
}

// ListClientRecords returns a client's reservations inside a date window.
func (c *Client) ListClientRecords(ctx context.Context, phone string, from, to time.Time) ([]Record, error) {
	params := url.Values{}
	params.Set("client_phone", phone)
	params.Set("start_date", from.Format("2006-01-02"))
	params.Set("end_date", to.Format("2006-01-02"))

	return c.fetchRecords(ctx, params)
}

// ListRecords returns all studio reservations inside a date window. Used by
// the reminder/feedback scanner.
func (c *Client) ListRecords(ctx context.Context, from, to time.Time, count int) ([]Record, error) {
	params := url.Values{}
	params.Set("start_date", from.Format("2006-01-02"))
	params.Set("end_date", to.Format("2006-01-02"))
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	return c.fetchRecords(ctx, params)
}

func (c *Client) fetchRecords(ctx context.Context, params url.Values) ([]Record, error) {
	data, err := c.request(ctx, http.MethodGet, "/records/"+c.companyID(), params, nil)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}
