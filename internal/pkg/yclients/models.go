package yclients

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The API is loose about scalar shapes: ids arrive as numbers or numeric
// strings, prices as numbers or currency-formatted text, flags may be
// missing. The flexible types below absorb all of that during decoding so
// nothing outside this package sees raw payload shapes.

// FlexInt decodes a JSON number or a numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Tolerate float-shaped ids
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			*f = 0
			return nil
		}
		n = int64(fl)
	}
	*f = FlexInt(n)
	return nil
}

// Money decodes a JSON number or a currency-formatted string such as
// "3 500 ₽" by keeping only digits and the decimal point.
type Money float64

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	if data[0] != '"' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			*m = 0
			return nil
		}
		*m = Money(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*m = 0
		return nil
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		*m = 0
		return nil
	}
	*m = Money(v)
	return nil
}

// Service is one bookable service from the catalog.
type Service struct {
	ID           FlexInt `json:"id"`
	APIID        FlexInt `json:"api_id"`
	Title        string  `json:"title"`
	BookingTitle string  `json:"booking_title"`
	Price        Money   `json:"price"`
	PriceMin     Money   `json:"price_min"`
	Duration     int     `json:"seance_length"`
}

// Key returns the stable service identifier (id, falling back to api_id).
func (s Service) Key() int64 {
	if s.ID != 0 {
		return int64(s.ID)
	}
	return int64(s.APIID)
}

// Name returns the display title.
func (s Service) Name() string {
	if s.Title != "" {
		return s.Title
	}
	return s.BookingTitle
}

// Amount returns the resolved price (price, falling back to price_min).
func (s Service) Amount() float64 {
	if s.Price != 0 {
		return float64(s.Price)
	}
	return float64(s.PriceMin)
}

// ServiceList flattens the occasional nested list-of-lists payload into a
// flat service slice; non-object entries are dropped.
type ServiceList []Service

func (l *ServiceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		// Some endpoints wrap the list: {"services": [...]}
		var wrapper struct {
			Services ServiceList `json:"services"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			*l = nil
			return nil
		}
		*l = wrapper.Services
		return nil
	}

	out := make(ServiceList, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 {
			continue
		}
		switch e[0] {
		case '[':
			var nested ServiceList
			if err := json.Unmarshal(e, &nested); err == nil {
				out = append(out, nested...)
			}
		case '{':
			var svc Service
			if err := json.Unmarshal(e, &svc); err == nil {
				out = append(out, svc)
			}
		default:
			// Bare numeric id (appointment service_ids shape)
			var id FlexInt
			if err := json.Unmarshal(e, &id); err == nil && id != 0 {
				out = append(out, Service{ID: id})
			}
		}
	}
	*l = out
	return nil
}

// Staff is one instructor.
type Staff struct {
	ID             FlexInt `json:"id"`
	Name           string  `json:"name"`
	BookableFlag   *bool   `json:"bookable"`
	Specialization string  `json:"specialization"`

	// Display-only descriptions merged in from the static roster.
	BestFor    string `json:"-"`
	Experience string `json:"-"`
}

// Bookable defaults to true when the flag is absent.
func (s Staff) Bookable() bool {
	return s.BookableFlag == nil || *s.BookableFlag
}

// Slot is one bookable time unit. The upstream shape varies: a bare string,
// an object with a full datetime, or an object with only "HH:MM".
type Slot struct {
	ID       FlexInt
	Datetime string
	Time     string
	Raw      string
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.Raw)
	}

	var obj struct {
		ID       FlexInt         `json:"id"`
		Datetime string          `json:"datetime"`
		Time     json.RawMessage `json:"time"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	s.ID = obj.ID
	s.Datetime = obj.Datetime
	if len(obj.Time) > 0 {
		var t string
		if err := json.Unmarshal(obj.Time, &t); err == nil {
			s.Time = t
		} else {
			s.Time = strings.Trim(string(obj.Time), `"`)
		}
	}
	return nil
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if s.Raw != "" && s.ID == 0 && s.Datetime == "" && s.Time == "" {
		return json.Marshal(s.Raw)
	}
	return json.Marshal(struct {
		ID       FlexInt `json:"id,omitempty"`
		Datetime string  `json:"datetime,omitempty"`
		Time     string  `json:"time,omitempty"`
	}{s.ID, s.Datetime, s.Time})
}

func (s Slot) value() string {
	if s.Datetime != "" {
		return s.Datetime
	}
	if s.Time != "" {
		return s.Time
	}
	return s.Raw
}

var slotLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "15:04"}

// Label formats the slot for display as "HH:MM". When no layout matches, the
// raw value is truncated so the button still shows something recognizable.
func (s Slot) Label() string {
	v := cleanDatetime(s.value())
	for _, layout := range slotLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("15:04")
		}
	}
	if len(v) > 8 {
		return v[:8]
	}
	return v
}

// Canonical resolves the slot into the "YYYY-MM-DD HH:MM:SS" form expected
// by the booking endpoints. A slot with no usable time component defaults to
// 09:00:00 on the given date.
func (s Slot) Canonical(date string) string {
	v := cleanDatetime(s.value())
	switch {
	case v == "" || len(v) == 10:
		return date + " 09:00:00"
	case len(v) >= 19:
		return v[:19]
	case len(v) == 5 && strings.Contains(v, ":"):
		return date + " " + v + ":00"
	case len(v) == 8 && strings.Count(v, ":") == 2:
		return date + " " + v
	default:
		return date + " 09:00:00"
	}
}

// cleanDatetime strips timezone suffixes and normalizes the T separator.
func cleanDatetime(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "Z", "")
	s = strings.ReplaceAll(s, "+00:00", "")
	s = strings.ReplaceAll(s, "+03:00", "")
	s = strings.Replace(s, "T", " ", 1)
	if len(s) > 19 {
		s = s[:19]
	}
	return s
}

// ClientInfo is a studio client looked up by phone.
type ClientInfo struct {
	ID           FlexInt         `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email"`
	CustomFields json.RawMessage `json:"custom_fields"`
}

// CustomField extracts a custom field by title. The API returns custom
// fields either as a map or as a list of {title, value} objects.
func customField(raw json.RawMessage, name string) string {
	if len(raw) == 0 {
		return ""
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if v, ok := asMap[name]; ok {
			return scalarString(v)
		}
		return ""
	}

	var asList []map[string]interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		for _, item := range asList {
			title, _ := item["title"].(string)
			if title == "" {
				title, _ = item["name"].(string)
			}
			if strings.EqualFold(title, name) {
				return scalarString(item["value"])
			}
		}
	}
	return ""
}

// CustomField extracts a named custom field from the client payload.
func (c ClientInfo) CustomField(name string) string {
	return customField(c.CustomFields, name)
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case nil:
		return ""
	default:
		return ""
	}
}
