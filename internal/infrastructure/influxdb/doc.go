// Package influxdb records auth event counters in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every auth event
// becomes one point in the auth_events measurement, tagged by event type
// and failure reason, so dashboards can chart sign-in failures and lockouts
// over time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("lockout", "", time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// failures are delivered to the SetOnError callback; connection and health
// check errors are returned directly.
package influxdb
