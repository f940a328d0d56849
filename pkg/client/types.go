package client

import "time"

// ProcessStatus mirrors one entry of GET /status.
type ProcessStatus struct {
	Index        int       `json:"index"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Args         []string  `json:"args,omitempty"`
	Kind         string    `json:"kind"`
	Restart      string    `json:"restart"`
	State        string    `json:"state"`
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	LastExitCode *int      `json:"last_exit_code,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Starts       int       `json:"starts"`
	Restarts     int       `json:"restarts"`
	Consecutive  int       `json:"consecutive_retries"`
	NextAttempt  time.Time `json:"next_attempt,omitzero"`
	Usage        *Usage    `json:"usage,omitempty"`
}

type Usage struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// ErrorResponse is the body of every non-200 answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
