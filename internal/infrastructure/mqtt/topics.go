package mqtt

import "fmt"

// Topic prefixes for the intercom message bus.
//
// Scheme: intercom/{category}/... — door state and commands carry the
// switch id, enrollment progress carries the user uuid.
const (
	// TopicPrefix is the base for all intercom topics.
	TopicPrefix = "intercom"

	// TopicPrefixSystem is the base for daemon lifecycle topics.
	TopicPrefixSystem = "intercom/system"
)

// Topics provides builders for intercom MQTT topics. Using these helpers
// keeps topic naming consistent across publishers and subscribers.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DoorState(1)
//	// Returns: "intercom/door/1/state"
type Topics struct{}

// AccessEvent returns the topic for successful-entry events pulled from
// the device log.
//
// Example: intercom/event/access
func (Topics) AccessEvent() string {
	return fmt.Sprintf("%s/event/access", TopicPrefix)
}

// DoorState returns the topic for a door switch's derived state.
// Published retained so new subscribers see the current state.
//
// Example: intercom/door/1/state
func (Topics) DoorState(switchID int) string {
	return fmt.Sprintf("%s/door/%d/state", TopicPrefix, switchID)
}

// AllDoorCommands returns a pattern matching the topics external systems
// publish door actions to (intercom/command/door/{id}, payload one of
// open/lock/unlock).
//
// Pattern: intercom/command/door/+
func (Topics) AllDoorCommands() string {
	return fmt.Sprintf("%s/command/door/+", TopicPrefix)
}

// Enrollment returns the topic for a user's enrollment outcome.
//
// Example: intercom/enrollment/51d2f1cc-...
func (Topics) Enrollment(userUUID string) string {
	return fmt.Sprintf("%s/enrollment/%s", TopicPrefix, userUUID)
}

// SystemStatus returns the daemon status topic, used for the online
// message, graceful shutdown and the LWT.
//
// Example: intercom/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
