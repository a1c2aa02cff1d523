package v1

import "encoding/json"

// StatusOK is the acknowledgment returned by a successful send.
const StatusOK = "ok"

// SendRequest is the body of POST /send.
//
// Chat is kept raw because callers may pass either a string (username,
// link, phone) or a number (peer id).
type SendRequest struct {
	Chat    json.RawMessage `json:"chat"`
	Message *string         `json:"message"`
}

// SendResponse is the success body of POST /send.
type SendResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the failure body of POST /send.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
