package bridge

import "rinnai_gateway/internal/schema"

const (
	deviceID   = "rinnai_touch_gateway"
	deviceName = "Rinnai Touch Gateway"
)

// entity is a Home Assistant MQTT discovery document.
type entity struct {
	Component string
	UniqueID  string
	Config    map[string]any
}

// discoveryEntities lists the status sensor, the reverse-cycle power switch
// and the common zone climate control.
func discoveryEntities(t Topics) []entity {
	rc := schema.ReverseCycle
	return []entity{
		{
			Component: "sensor",
			UniqueID:  deviceID + "_status",
			Config: map[string]any{
				"name":                  "Status",
				"state_topic":           t.Online(),
				"value_template":        `{% set lookup = {true: "online", false: "offline"} %} {{lookup[value]}}`,
				"json_attributes_topic": t.Config(),
			},
		},
		{
			Component: "switch",
			UniqueID:  deviceID + "_reverse_cycle_operating_state",
			Config: map[string]any{
				"name":          "Reverse Cycle",
				"device_class":  "switch",
				"icon":          "mdi:power",
				"state_topic":   t.Field(rc, "operatingState"),
				"state_off":     "off",
				"state_on":      "on",
				"command_topic": t.Command(),
				"payload_off":   `["reverseCycle", "operatingState", "off"]`,
				"payload_on":    `["reverseCycle", "operatingState", "on"]`,
				"optimistic":    false,
			},
		},
		{
			Component: "climate",
			UniqueID:  deviceID + "_zone_common",
			Config: map[string]any{
				"name":                         "Zone Control",
				"modes":                        []string{"cool", "heat_cool", "heat"},
				"mode_state_topic":             t.Field(rc, "reverseCycleMode"),
				"mode_state_template":          `{% set lookup = {"cooling": "cool", "cooling_heating": "heat_cool", "heating": "heat"} %} {{lookup[value]}}`,
				"mode_command_topic":           t.Command(),
				"mode_command_template":        `{% set lookup = {"cool": "cooling", "heat_cool": "cooling_heating", "heat": "heating"} %}["reverseCycle", "reverseCycleMode", "{{lookup[value]}}"]`,
				"temperature_state_topic":      t.Field(rc, "setTemp"),
				"temperature_command_topic":    t.Command(),
				"temperature_command_template": `["reverseCycle", "setTemp", "{{value|int}}"]`,
				"temperature_unit":             "C",
				"temp_step":                    1,
				"precision":                    1.0,
				"min_temp":                     8,
				"max_temp":                     30,
			},
		},
	}
}

// withDevice adds the shared device and availability keys to cfg.
func withDevice(t Topics, e entity) map[string]any {
	out := make(map[string]any, len(e.Config)+6)
	for k, v := range e.Config {
		out[k] = v
	}
	out["unique_id"] = e.UniqueID
	out["platform"] = "mqtt"
	out["device"] = map[string]any{
		"identifiers": []string{deviceID},
		"name":        deviceName,
	}
	out["availability_topic"] = t.Online()
	out["payload_available"] = payloadOnline
	out["payload_not_available"] = payloadOffline
	return out
}
