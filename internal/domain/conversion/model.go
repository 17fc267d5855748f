package conversion

import (
	"encoding/json"
)

// Request is one conversion request entry as received over HTTP.
type Request struct {
	ID    json.RawMessage `json:"id,omitempty"`
	Loinc string          `json:"loinc"`
	Unit  string          `json:"unit"`
	Value interface{}     `json:"value,omitempty"`

	// decodeErr is set when the entry could not be decoded. Such an entry
	// fails on its own without touching the resolver.
	decodeErr error
}

// decodeRequest decodes one entry of a request body. A malformed entry still
// yields a Request carrying its id, when one can be recovered.
func decodeRequest(raw json.RawMessage) Request {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		var idOnly struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(raw, &idOnly)
		return Request{
			ID:        idOnly.ID,
			decodeErr: &Error{Kind: ErrInvalidRequest, Reason: err.Error(), Err: err},
		}
	}
	return req
}

// Result is a successful resolution.
type Result struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Loinc   string  `json:"loinc"`
	Display string  `json:"display,omitempty"`
	Warning string  `json:"warning,omitempty"`
}

// Response is one entry of the response envelope: either the fields of a
// Result or an Error message, tagged with the request's id.
type Response struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Value   *float64        `json:"value,omitempty"`
	Unit    string          `json:"unit,omitempty"`
	Loinc   string          `json:"loinc,omitempty"`
	Display string          `json:"display,omitempty"`
	Warning string          `json:"warning,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Failed reports whether the entry carries an error.
func (r *Response) Failed() bool {
	return r.Error != ""
}

func newResponse(id json.RawMessage, res *Result, err error) Response {
	if err != nil {
		return Response{ID: id, Error: err.Error()}
	}
	v := res.Value
	return Response{
		ID:      id,
		Value:   &v,
		Unit:    res.Unit,
		Loinc:   res.Loinc,
		Display: res.Display,
		Warning: res.Warning,
	}
}
