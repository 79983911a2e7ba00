package mqtt

import "fmt"

// TopicRoot is the first level of every planter topic.
const TopicRoot = "planter"

// Topics builds the topic tree for one appliance:
//
//	planter/{site}/status          retained status snapshot
//	planter/{site}/reading         each sensor reading
//	planter/{site}/availability    online/offline, also the LWT
//	planter/{site}/event/watering  one message per watering attempt
//	planter/{site}/command/{name}  inbound operator commands
type Topics struct {
	Site string
}

func (t Topics) base() string {
	site := t.Site
	if site == "" {
		site = "default"
	}
	return fmt.Sprintf("%s/%s", TopicRoot, site)
}

// Status returns the retained status snapshot topic.
func (t Topics) Status() string { return t.base() + "/status" }

// Reading returns the sensor reading topic.
func (t Topics) Reading() string { return t.base() + "/reading" }

// Availability returns the online/offline topic.
func (t Topics) Availability() string { return t.base() + "/availability" }

// WateringEvent returns the topic for watering attempts.
func (t Topics) WateringEvent() string { return t.base() + "/event/watering" }

// Command returns the topic for a named command, e.g. "water".
func (t Topics) Command(name string) string { return t.base() + "/command/" + name }

// AllCommands matches every command topic for the site.
func (t Topics) AllCommands() string { return t.base() + "/command/+" }
