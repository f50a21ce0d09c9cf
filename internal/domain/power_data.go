package domain

import (
	"encoding/json"
	"time"
)

// PowerDataRecord registra una respuesta cruda del portal SEMS asociada al usuario local.
type PowerDataRecord struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	DeviceID   string          `json:"device_id"`
	Payload    json.RawMessage `json:"payload"`
	CapturedAt time.Time       `json:"captured_at"`
}
