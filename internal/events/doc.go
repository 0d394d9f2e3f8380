// Package events delivers auth events to the audit log, MQTT and InfluxDB.
//
// Each destination is an auth.EventSink. Fanout sends every event to all of
// them in order. Sinks never fail the request that produced the event: a
// sink that cannot deliver logs a warning and moves on.
package events
