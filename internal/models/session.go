package models

// SessionStatus is the body of the session liveness probe.
type SessionStatus struct {
	Active bool `json:"active"`
}

// GroupStats summarizes one relay surface.
type GroupStats struct {
	Groups  int `json:"groups"`
	Members int `json:"members"`
}

// Stats is returned by the admin stats endpoint.
type Stats struct {
	ActiveSessions int        `json:"activeSessions"`
	Negotiation    GroupStats `json:"negotiation"`
	Chat           GroupStats `json:"chat"`

	MirroredSessions []string `json:"mirroredSessions,omitempty"`
}
