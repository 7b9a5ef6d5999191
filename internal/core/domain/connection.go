package domain

import "time"

// ConnectionRecord is one entry of the presence directory.
type ConnectionRecord struct {
	Username    string    `json:"username"`
	Address     string    `json:"ip_address"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Key identifies a record across two directory snapshots.
func (r ConnectionRecord) Key() string {
	return r.Username + "|" + r.Address + "|" + r.ConnectedAt.UTC().Format(time.RFC3339Nano)
}
