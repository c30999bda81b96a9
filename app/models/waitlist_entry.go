package models

// WaitlistEntry records an interested address before FleetLog access opens.
type WaitlistEntry struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	FleetSize int    `json:"fleet_size,omitempty"`
	JoinedAt  string `json:"joined_at"`
	Source    string `json:"source,omitempty"`
}
