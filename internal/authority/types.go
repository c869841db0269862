package authority

import (
	"time"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

type activeResponse struct {
	Active    bool               `json:"active"`
	Inventory *inventory.Session `json:"inventory"`
}

type versionResponse struct {
	Hash      string     `json:"hash"`
	Count     int        `json:"count"`
	Timestamp *time.Time `json:"timestamp"`
}

// PushRequest is the full-snapshot body of a journal push.
type PushRequest struct {
	Device   string                    `json:"device"`
	PushID   string                    `json:"pushId"`
	Readings []inventory.ReadingRecord `json:"readings"`
	Log      []inventory.LogEntry      `json:"log"`
}

// PushResponse acknowledges a push. PushID echoes the request's nonce.
type PushResponse struct {
	Success bool   `json:"success"`
	Records int    `json:"records"`
	PushID  string `json:"pushId"`
}
