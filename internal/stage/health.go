package stage

// State is a stage's readiness as reported to `newsreel check` and the
// status API.
type State string

const (
	StateReady State = "ready"
	// StateDegraded stages run but skip part of their work, e.g. distribution
	// with uploads disabled routes every job to the fallback.
	StateDegraded    State = "degraded"
	StateUnavailable State = "unavailable"
)

type Health struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health {
	return Health{Name: name, State: StateReady}
}

func Degraded(name, detail string) Health {
	return Health{Name: name, State: StateDegraded, Detail: detail}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, State: StateUnavailable, Detail: detail}
}

// Usable reports whether jobs can pass through the stage at all.
func (h Health) Usable() bool {
	return h.State == StateReady || h.State == StateDegraded
}
