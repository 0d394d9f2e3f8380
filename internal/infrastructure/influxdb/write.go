package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// AuthEventMeasurement is the measurement auth events are counted in.
const AuthEventMeasurement = "auth_events"

// WriteAuthEvent records one occurrence of an auth event.
//
// Tags stay low-cardinality: the event type and, for failures, the reason
// ("bad_password", "locked_out", ...). User IDs and client IPs belong in
// the audit log, not in series keys.
//
// Example:
//
//	client.WriteAuthEvent("signin_failed", "bad_password", time.Now())
func (c *Client) WriteAuthEvent(eventType, reason string, at time.Time) {
	tags := map[string]string{"event": eventType}
	if reason != "" {
		tags["reason"] = reason
	}
	c.writePoint(write.NewPoint(AuthEventMeasurement, tags, map[string]any{"count": 1}, at))
}

// writePoint queues p for the next batch. Dropped when not connected.
func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
