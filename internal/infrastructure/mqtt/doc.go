// Package mqtt publishes RBAC Core events to an MQTT broker.
//
// The client is publish-only. Auth events are sent to
// {prefix}/events/auth/{type} at the configured QoS and never retained.
// The service status is published retained to {prefix}/system/status, with a
// Last Will so subscribers see "offline" if the process dies.
//
// MQTT is optional. When the broker is unreachable at startup the service
// runs without it; once connected, paho reconnects automatically with
// exponential backoff and Publish returns ErrNotConnected while it is down.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().AuthEvent("signin_failed")
//	err = client.PublishJSON(topic, event)
package mqtt
