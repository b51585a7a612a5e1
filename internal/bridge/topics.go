package bridge

import "strings"

// Default topic roots.
const (
	DefaultRootTopic       = "rinnaitouch"
	DefaultDiscoveryPrefix = "homeassistant"
)

// Payloads of the online topic.
const (
	payloadOnline  = "true"
	payloadOffline = "false"
)

// Topics derives every topic from a root and a Home Assistant discovery prefix.
type Topics struct {
	Root            string
	DiscoveryPrefix string
}

func NewTopics(root, discoveryPrefix string) Topics {
	root = strings.Trim(root, "/")
	if root == "" {
		root = DefaultRootTopic
	}
	discoveryPrefix = strings.Trim(discoveryPrefix, "/")
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return Topics{Root: root, DiscoveryPrefix: discoveryPrefix}
}

func (t Topics) Online() string         { return t.Root + "/online" }
func (t Topics) Status() string         { return t.Root + "/status" }
func (t Topics) Config() string         { return t.Root + "/config" }
func (t Topics) Command() string        { return t.Root + "/command" }
func (t Topics) CommandSuccess() string { return t.Root + "/command/success" }
func (t Topics) RawCommand() string     { return t.Root + "/rawcommand" }

// Field is the retained per-field topic, e.g. rinnaitouch/config/gasHeating/setTemp.
func (t Topics) Field(service, field string) string {
	return t.Config() + "/" + service + "/" + field
}

// Discovery is the Home Assistant config topic of one entity.
func (t Topics) Discovery(component, uniqueID string) string {
	return t.DiscoveryPrefix + "/" + component + "/" + uniqueID + "/config"
}
