package zoom

import (
	"bytes"
	"encoding/json"
)

// MeetingType is the kind of meeting being scheduled.
type MeetingType int

// Meeting types accepted by the create meeting endpoint.
const (
	MeetingInstant           MeetingType = 1
	MeetingScheduled         MeetingType = 2
	MeetingRecurring         MeetingType = 3
	MeetingRecurringWithTime MeetingType = 8
)

// User is one entry of the account's user list.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Type      int    `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// UserPage is a single page of GET /users.
type UserPage struct {
	PageCount     int    `json:"page_count"`
	PageNumber    int    `json:"page_number"`
	PageSize      int    `json:"page_size"`
	TotalRecords  int    `json:"total_records"`
	NextPageToken string `json:"next_page_token,omitempty"`
	Users         []User `json:"users"`
}

// ListUsersOptions are the query parameters for GET /users.
type ListUsersOptions struct {
	// Status filters users by status: active, inactive or pending.
	// Empty means no filter.
	Status string
	// PageSize defaults to DefaultPageSize.
	PageSize int
	// PageNumber is 1-based and defaults to 1.
	PageNumber int
}

// Meeting is the response of the create meeting endpoint.
type Meeting struct {
	ID        int64       `json:"id"`
	UUID      string      `json:"uuid"`
	HostID    string      `json:"host_id"`
	HostEmail string      `json:"host_email"`
	Topic     string      `json:"topic"`
	Type      MeetingType `json:"type"`
	StartTime string      `json:"start_time"`
	Duration  int         `json:"duration"`
	Timezone  string      `json:"timezone"`
	Agenda    string      `json:"agenda"`
	CreatedAt string      `json:"created_at"`
	JoinURL   string      `json:"join_url"`
	StartURL  string      `json:"start_url"`
	Password  string      `json:"password"`

	// Raw is the complete response document, including fields not mapped
	// above. Numbers are kept as json.Number.
	Raw map[string]any `json:"-"`
}

// Field returns a top-level response field by its JSON name.
func (m *Meeting) Field(name string) (any, bool) {
	if m == nil || m.Raw == nil {
		return nil, false
	}
	v, ok := m.Raw[name]
	return v, ok
}

// decodeMeeting fills both the typed fields and Raw from one response body.
func decodeMeeting(data []byte) (*Meeting, error) {
	var m Meeting
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	m.Raw = raw
	return &m, nil
}
