package testctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrDurationRequired = errors.New("duration is required to start a test")

type CreateRequest struct {
	CourseID    int    `json:"course_id"`
	LessonID    int    `json:"lesson_id"`
	ServerHost  string `json:"server_host"`
	TestUserNum int    `json:"test_user_num"`
	// TargetPtcID nil means test users interact with a random participant.
	TargetPtcID     *int `json:"target_ptc_id"`
	WithLocalTester bool `json:"with_local_tester"`
}

type ModifyRequest struct {
	ServerHost  string `json:"server_host"`
	TargetPtcID *int   `json:"target_ptc_id"`
	Duration    *int   `json:"duration"`
}

type startRequest struct {
	Duration int `json:"duration"`
}

type TestConfig struct {
	ID            int    `json:"id"`
	CourseID      int    `json:"course_id"`
	LessonID      int    `json:"lesson_id"`
	ServerHost    string `json:"server_host"`
	TargetPtcID   *int   `json:"target_ptc_id"`
	StartAt       *Time  `json:"start_at"`
	EndAt         *Time  `json:"end_at"`
	Deleted       bool   `json:"deleted"`
	Started       *bool  `json:"started"`
	Ended         *bool  `json:"ended"`
	RemainingTime int    `json:"remaining_time"`
}

// Time accepts the backend's timestamps, which are UTC and usually carry no zone.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// decodeAPIError reads a {"detail": ...} body, where detail is either a message or a
// list of validation errors.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(envelope.Detail, &msg); err == nil {
		apiErr.Detail = msg
		return apiErr
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if len(item.Loc) > 0 {
				loc := make([]string, len(item.Loc))
				for i, l := range item.Loc {
					loc[i] = fmt.Sprint(l)
				}
				parts = append(parts, strings.Join(loc, ".")+": "+item.Msg)
			} else {
				parts = append(parts, item.Msg)
			}
		}
		apiErr.Detail = strings.Join(parts, "; ")
		return apiErr
	}

	apiErr.Detail = string(envelope.Detail)
	return apiErr
}
