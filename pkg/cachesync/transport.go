package cachesync

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/crewbase/crewbase/pkg/apperror"
)

// Request is one mutation on the wire. Payload carries the entity attributes
// under their snake_case names; existing clients depend on that exact shape.
type Request struct {
	Entity  string          `json:"entity"`
	Action  string          `json:"action"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response carries the canonical record a successful mutation settled on.
// Deletes return an empty record.
type Response struct {
	Record json.RawMessage `json:"record,omitempty"`
}

// Transport issues mutations to the server.
type Transport interface {
	Mutate(ctx context.Context, req Request) (Response, error)
}

// TransportError mirrors the server's typed failure on the client side.
type TransportError struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
}

func (e *TransportError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Retryable reports whether the failure is eligible for the one automatic
// retry. Only transient store conflicts are.
func (e *TransportError) Retryable() bool {
	return e.Code == apperror.CodeConflict
}
