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

// ListServices returns the bookable service catalog, optionally filtered by
// staff member. An empty list is a valid "no services" result.
func (c *Client) ListServices(ctx context.Context, staffID int64) ([]Service, error) {
	params := url.Values{}
	if staffID > 0 {
		params.Set("staff_id", strconv.FormatInt(staffID, 10))
	}

	data, err := c.request(ctx, http.MethodGet, "/book_services/"+c.companyID(), params, nil)
	if err != nil {
		return nil, err
	}

	var services ServiceList
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, nil
	}
	return services, nil
}

// ListStaff returns instructors, optionally filtered by service. The caller
// filters out non-bookable entries.
func (c *Client) ListStaff(ctx context.Context, serviceID int64) ([]Staff, error) {
	params := url.Values{}
	if serviceID > 0 {
		params.Set("service_ids[]", strconv.FormatInt(serviceID, 10))
	}

	data, err := c.request(ctx, http.MethodGet, "/book_staff/"+c.companyID(), params, nil)
	if err != nil {
		return nil, err
	}

	var staff []Staff
	if err := json.Unmarshal(data, &staff); err != nil {
		return nil, nil
	}
	return staff, nil
}

// ListDates returns available booking dates for a staff/service pair as
// canonical "YYYY-MM-DD" strings. The upstream sends either ISO date
// strings or Unix timestamps depending on mode.
func (c *Client) ListDates(ctx context.Context, staffID, serviceID int64) ([]string, error) {
	params := url.Values{}
	if staffID > 0 {
		params.Set("staff_id", strconv.FormatInt(staffID, 10))
	}
	if serviceID > 0 {
		params.Set("service_ids[]", strconv.FormatInt(serviceID, 10))
	}

	data, err := c.request(ctx, http.MethodGet, "/book_dates/"+c.companyID(), params, nil)
	if err != nil {
		return nil, err
	}

	var entries []json.RawMessage
	var wrapper struct {
		BookingDates []json.RawMessage `json:"booking_dates"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.BookingDates != nil {
		entries = wrapper.BookingDates
	} else if err := json.Unmarshal(data, &entries); err != nil {
		// Bare list mode failed too; treat as no availability
		return nil, nil
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if d := c.normalizeDate(e); d != "" {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// ListTimes returns available time slots for a staff member on a date. The
// upstream sends either a bare list or a {"seances": [...]} wrapper.
func (c *Client) ListTimes(ctx context.Context, staffID int64, date string, serviceID int64) ([]Slot, error) {
	params := url.Values{}
	if serviceID > 0 {
		params.Set("service_ids[]", strconv.FormatInt(serviceID, 10))
	}

	path := "/book_times/" + c.companyID() + "/" + strconv.FormatInt(staffID, 10) + "/" + date
	data, err := c.request(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	if err := json.Unmarshal(data, &slots); err == nil {
		return slots, nil
	}

	var wrapper struct {
		Seances []Slot `json:"seances"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, nil
	}
	return wrapper.Seances, nil
}

// normalizeDate converts one date entry (ISO string or Unix timestamp) to
// "YYYY-MM-DD" in the studio timezone.
func (c *Client) normalizeDate(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(ts, 0).In(c.cfg.Location).Format("2006-01-02")
		}
		if len(s) >= 10 {
			return s[:10]
		}
		return s
	}

	var ts int64
	if err := json.Unmarshal(raw, &ts); err != nil {
		return ""
	}
	return time.Unix(ts, 0).In(c.cfg.Location).Format("2006-01-02")
}
