package rpc

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is the wire form of a call: a method name and positional string
// arguments.
type Request struct {
	Method    string   `json:"method"`
	Arguments []string `json:"arguments"`
}

func NewRequest(m Method, args ...string) Request {
	if args == nil {
		args = []string{}
	}
	return Request{Method: string(m), Arguments: args}
}

// Response is what every request gets back, including protocol errors.
type Response struct {
	Status       Status          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func Success(result any) Response {
	if result == nil {
		return Response{Status: StatusSuccess}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Failure(fmt.Errorf("encoding result: %w", err))
	}
	return Response{Status: StatusSuccess, Result: raw}
}

func Failure(err error) Response {
	return Response{Status: StatusError, ErrorMessage: err.Error()}
}

func (r Response) OK() bool {
	return r.Status == StatusSuccess
}

// Decode unmarshals the result into v. Error responses become *RemoteError.
func (r Response) Decode(v any) error {
	if !r.OK() {
		return &RemoteError{Message: r.ErrorMessage}
	}
	if v == nil || len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

// RemoteError is an error response returned by the recommender.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
