package assignment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assigner"
)

// ErrInvalidRequest is returned for assignment requests that fail validation.
var ErrInvalidRequest = errors.New("invalid assignment request")

// Request asks for an identifier of IdentifierType to be assigned to a CO Person.
type Request struct {
	CoID           int64  `json:"co_id"`
	Context        string `json:"context"`
	RecordID       int64  `json:"record_id"`
	IdentifierType string `json:"identifier_type"`
	EmailType      string `json:"email_type,omitempty"`
}

// Validate checks ids and identifier type. An empty Context defaults to CoPerson.
func (r *Request) Validate() error {
	if r.CoID <= 0 {
		return fmt.Errorf("%w: co_id must be positive", ErrInvalidRequest)
	}
	if r.RecordID <= 0 {
		return fmt.Errorf("%w: record_id must be positive", ErrInvalidRequest)
	}
	r.IdentifierType = strings.TrimSpace(r.IdentifierType)
	if r.IdentifierType == "" {
		return fmt.Errorf("%w: identifier_type is required", ErrInvalidRequest)
	}
	if r.Context == "" {
		r.Context = string(assigner.ContextCoPerson)
	}
	return nil
}

func (r Request) assignerRequest() assigner.Request {
	return assigner.Request{
		CoID:           r.CoID,
		Context:        assigner.Context(r.Context),
		RecordID:       r.RecordID,
		IdentifierType: r.IdentifierType,
		EmailType:      r.EmailType,
	}
}

// DecodeRequest parses and validates a JSON assignment request.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}
