// Package actuator sends actuation requests to the device-control API.
package actuator

import (
	"encoding/json"
	"time"

	"github.com/sweeney/param-actuator/internal/logic"
)

// Target is the API endpoint, credentials and device list a fire is sent to.
type Target struct {
	URL        string
	Username   string
	APIKey     string
	Name       string
	ShareCodes []string
	Timeout    time.Duration
}

// Request is the JSON body of one actuation call for one device.
type Request struct {
	Username  string `json:"Username"`
	APIKey    string `json:"Apikey"`
	Name      string `json:"Name"`
	Code      string `json:"Code"`
	Op        int    `json:"Op"`
	Duration  int    `json:"Duration"`
	Intensity int    `json:"Intensity"`
}

// NewRequest builds the request for one device share code.
func NewRequest(t Target, shareCode string, f logic.Fire) Request {
	return Request{
		Username:  t.Username,
		APIKey:    t.APIKey,
		Name:      t.Name,
		Code:      shareCode,
		Op:        f.Code,
		Duration:  f.Duration,
		Intensity: f.Intensity,
	}
}

// FormatRequest creates the JSON body for a request.
func FormatRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

// Stats counts per-device request outcomes since startup.
type Stats struct {
	Sent    int64
	Failed  int64
	Skipped int64
}
