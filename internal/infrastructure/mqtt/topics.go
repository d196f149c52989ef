package mqtt

import "strings"

// TopicPrefix is the root of every topic the fetcher publishes.
const TopicPrefix = "fetcher"

// Topics builds the fetcher's topic names.
//
// Layout:
//
//	fetcher/system/status          online/offline (retained, LWT)
//	fetcher/state/{source}/{id}    latest device metrics (retained)
//	fetcher/health/{source}        last cycle outcome (retained)
//
// Usage:
//
//	topic := mqtt.Topics{}.DeviceState("eufy", "T8113N1234")
type Topics struct{}

// SystemStatus returns the fetcher's own online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceState returns the retained state topic for one device.
func (Topics) DeviceState(source, deviceID string) string {
	return TopicPrefix + "/state/" + sanitizeSegment(source) + "/" + sanitizeSegment(deviceID)
}

// AllDeviceStates returns a wildcard covering every device state topic.
// Useful for consumers; Publish rejects it.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/#"
}

// SourceHealth returns the retained health topic for a collection source.
func (Topics) SourceHealth(source string) string {
	return TopicPrefix + "/health/" + sanitizeSegment(source)
}

// sanitizeSegment keeps vendor identifiers from injecting topic levels
// or wildcards.
func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		}
		return r
	}, s)
}

// validPublishTopic rejects empty topics and topics containing wildcards.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
