package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "rbac"

// Topics builds RBAC Core topic names under a prefix.
//
//	topics := mqtt.NewTopics("rbac")
//	topics.AuthEvent("lockout") // "rbac/events/auth/lockout"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are trimmed;
// an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root segment.
func (t Topics) Prefix() string { return t.prefix }

// AuthEvent returns the topic for one auth event type.
//
// Example: rbac/events/auth/signin_failed
func (t Topics) AuthEvent(eventType string) string {
	return fmt.Sprintf("%s/events/auth/%s", t.prefix, eventType)
}

// AllAuthEvents is the wildcard subscription matching every auth event.
//
// Example: rbac/events/auth/+
func (t Topics) AllAuthEvents() string {
	return t.prefix + "/events/auth/+"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: rbac/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// validPublishTopic rejects empty topics and wildcards, which are only
// legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
