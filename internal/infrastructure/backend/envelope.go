package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the logical outcome carried by every response envelope. It is
// authoritative: an HTTP 200 with StatusError is a failure.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusInfo    Status = "Info"
	StatusWarning Status = "Warning"
	StatusError   Status = "Error"
)

// envelope is the uniform response shape of both services. Data is a tagged
// union whose variant depends on the endpoint, so it is decoded per call site.
type envelope struct {
	Status  Status          `json:"status"  validate:"required,oneof=Success Info Warning Error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) succeeded() bool {
	return e.Status == StatusSuccess
}

var errNoData = errors.New("envelope carries no data")

// decodeData decodes the data member of env as T.
func decodeData[T any](env envelope) (T, error) {
	var out T
	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, errNoData
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode data: %w", err)
	}
	return out, nil
}

// connectionPayload is one element of the list-users data array.
type connectionPayload struct {
	Username    string    `json:"username"     validate:"required"`
	Address     string    `json:"ip_address"   validate:"required"`
	ConnectedAt timestamp `json:"connected_at" validate:"required"`
}

// timestamp accepts the ISO-8601 forms the Presence service has been seen to
// emit: RFC 3339 with a zone, a naive UTC datetime, and a space-separated one.
type timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
