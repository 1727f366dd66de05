package response

import "github.com/user/listing-radar/internal/usecase"

type RunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is a DTO for the pipeline state: whether a pass is in
// flight right now, and the last completed pass's summary.
type StatusResponse struct {
	Running bool                `json:"running"`
	LastRun *usecase.RunSummary `json:"last_run,omitempty"`
}
