package models

// LogEntry is a single driver log record. Entries are stored under their own
// key and indexed per user through a list of entry IDs.
type LogEntry struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Title     string `json:"title"`
	Note      string `json:"note,omitempty"`
	Odometer  int64  `json:"odometer,omitempty"`
	CreatedAt string `json:"created_at"`
}
