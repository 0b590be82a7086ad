// Package report defines the envelope handed to reporting sinks and the
// sinks shipped with the agent.
package report

// Type identifies the kind of sample carried by an Envelope.
type Type string

const (
	// TypeMemory marks a periodic memory gauge sample.
	TypeMemory Type = "memory"
	// TypeGC marks a per-event garbage collection sample.
	TypeGC Type = "gc"
)

// Base holds the contextual fields attached to every envelope.
type Base struct {
	Env             string            `json:"env"`
	Platform        string            `json:"platform"`
	Project         string            `json:"project"`
	ClientTimestamp int64             `json:"clientTimestamp,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Envelope is the wire shape handed to a Reporter.
type Envelope struct {
	Type Type `json:"type"`
	Base Base `json:"base"`
	Data any  `json:"data,omitempty"`
}

// DefaultPlatform fills Base.Platform when neither the envelope nor the
// defaults set one.
const DefaultPlatform = "go"

// Options carries per-call reporting options.
type Options struct {
	// Dev routes the envelope to the development endpoint.
	Dev bool
}

// Defaults are the process-wide values used to fill an envelope's base.
// They are built once at the boundary from configuration.
type Defaults struct {
	Env      string
	Platform string
	Project  string
	Extra    map[string]string
}

// NewEnvelope builds an envelope of type t whose base is populated from d.
func NewEnvelope(t Type, d Defaults, data any) Envelope {
	env := Envelope{Type: t, Data: data}
	env.ApplyDefaults(d)
	return env
}

// ApplyDefaults fills any unset base field from d. Extra keys already
// present on the envelope win over the defaults.
func (e *Envelope) ApplyDefaults(d Defaults) {
	if e.Base.Env == "" {
		e.Base.Env = d.Env
	}
	if e.Base.Platform == "" {
		e.Base.Platform = d.Platform
	}
	if e.Base.Platform == "" {
		e.Base.Platform = DefaultPlatform
	}
	if e.Base.Project == "" {
		e.Base.Project = d.Project
	}
	if len(d.Extra) == 0 {
		return
	}
	merged := make(map[string]string, len(d.Extra)+len(e.Base.Extra))
	for k, v := range d.Extra {
		merged[k] = v
	}
	for k, v := range e.Base.Extra {
		merged[k] = v
	}
	e.Base.Extra = merged
}
