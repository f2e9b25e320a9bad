// Package model holds the shared types of the terminal service.
package model

// Status is the serializable snapshot of the terminal session.
//
// PID is present once a process has been created; ExitCode once it has
// exited. Rows and Cols reflect the last window size whose device-level
// apply succeeded.
type Status struct {
	IsStarted   bool   `json:"isStarted"`
	IsCompleted bool   `json:"isCompleted"`
	PID         *int   `json:"pid,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	Rows        uint16 `json:"rows"`
	Cols        uint16 `json:"cols"`
	Subscribers int    `json:"subscribers"`
}

// ResizeRequest is the body of a terminal resize call.
type ResizeRequest struct {
	Rows uint16 `json:"rows" binding:"required"`
	Cols uint16 `json:"cols" binding:"required"`
}

// Validate validates the resize request.
func (r *ResizeRequest) Validate() error {
	if r.Rows == 0 || r.Cols == 0 {
		return ErrInvalidDimensions
	}
	return nil
}
