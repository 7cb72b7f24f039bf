package zoom

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Params are the arguments of one create meeting call, keyed by API field
// name. Values may be strings, numbers, time.Time or nested JSON values.
type Params map[string]any

// Meeting defaults applied when the caller leaves a field empty.
const (
	DefaultTopic    = "My Meeting"
	DefaultAgenda   = "My Description"
	DefaultTimezone = "UTC"
)

// StartTimeLayout is the local time layout Zoom expects alongside a
// timezone field.
const StartTimeLayout = "2006-01-02T15:04:05"

// Host selection fields. They choose the user the meeting is created for
// and are never sent in the request body.
const (
	ParamHostID    = "host_id"
	ParamHostEmail = "host_email"
)

// CreateMeetingParams is the set of parameter names accepted by
// CreateMeeting, including the host selection fields.
var CreateMeetingParams = map[string]struct{}{
	ParamHostID:        {},
	ParamHostEmail:     {},
	"agenda":           {},
	"start_time":       {},
	"template_id":      {},
	"password":         {},
	"timezone":         {},
	"topic":            {},
	"tracking_fields":  {},
	"duration":         {},
	"recurrence":       {},
	"default_password": {},
	"pre_schedule":     {},
	"settings":         {},
	"schedule_for":     {},
	"type":             {},
}

// IsCreateMeetingParam reports whether name is accepted by CreateMeeting.
func IsCreateMeetingParam(name string) bool {
	_, ok := CreateMeetingParams[name]
	return ok
}

// integer fields are sent as numbers even when the source cell was text.
var integerFields = map[string]struct{}{
	"duration": {},
	"type":     {},
}

// object fields may arrive from a spreadsheet as JSON text.
var objectFields = map[string]struct{}{
	"settings":        {},
	"recurrence":      {},
	"tracking_fields": {},
}

// String returns a parameter as text, or "" when absent.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(StartTimeLayout)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// Empty reports whether a parameter is absent or blank.
func (p Params) Empty(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// requestBody turns Params into the JSON body of a create meeting call:
// host selection fields are dropped, defaults are filled in and values
// are converted to the types the API expects.
func (p Params) requestBody() map[string]any {
	body := make(map[string]any, len(p)+4)
	maps.Copy(body, p)
	delete(body, ParamHostID)
	delete(body, ParamHostEmail)

	if p.Empty("topic") {
		body["topic"] = DefaultTopic
	}
	if p.Empty("agenda") {
		body["agenda"] = DefaultAgenda
	}
	if p.Empty("timezone") {
		body["timezone"] = DefaultTimezone
	}
	if p.Empty("type") {
		body["type"] = MeetingScheduled
	}

	for k, v := range body {
		switch t := v.(type) {
		case time.Time:
			body[k] = t.Format(StartTimeLayout)
		case string:
			body[k] = coerce(k, t)
		}
	}
	return body
}

func coerce(field, value string) any {
	value = strings.TrimSpace(value)
	if _, ok := integerFields[field]; ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return int(f)
		}
	}
	if _, ok := objectFields[field]; ok && json.Valid([]byte(value)) {
		return json.RawMessage(value)
	}
	return value
}
