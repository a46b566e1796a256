package drone

import "time"

// Telemetry is a snapshot of drone state. Zero values mean "not reported".
type Telemetry struct {
	Battery     int       `json:"battery"`      // percent
	Height      int       `json:"height"`       // cm
	TOF         int       `json:"tof"`          // time-of-flight distance, cm
	Temperature float64   `json:"temperature"`  // celsius
	FlightTime  int       `json:"flight_time"`  // seconds
	WiFi        int       `json:"wifi"`         // signal strength
	UpdatedAt   time.Time `json:"updated_at"`
}
