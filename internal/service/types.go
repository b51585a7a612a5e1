package service

import "time"

// Values is the translated configuration of one service, keyed by field name.
type Values map[string]any

// Config is the translated appliance configuration: "system" plus one entry
// per installed service.
type Config map[string]Values

// CommandRequest asks for field of service to be set to value.
type CommandRequest struct {
	Service string `json:"service" binding:"required"`
	Field   string `json:"field" binding:"required"`
	Value   string `json:"value"`
}

func (r CommandRequest) String() string {
	return r.Service + "." + r.Field + "=" + r.Value
}

// LogFilter narrows event log queries.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // empty or one of models.EventTypes
	// Limit keeps only the newest Limit events; zero means all.
	Limit int
}
