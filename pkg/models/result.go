package models

// ErrorKind classifies why an aggregation did not succeed.
type ErrorKind string

const (
	KindInputValidation ErrorKind = "input_validation"
	KindConfiguration   ErrorKind = "configuration"
	KindDealFetch       ErrorKind = "deal_fetch"
	KindBatchFetch      ErrorKind = "batch_fetch"
	KindCancelled       ErrorKind = "cancelled"
	KindUnexpected      ErrorKind = "unexpected"
)

// AggregationResult is the envelope returned by every aggregation surface
// (function adapter, HTTP, gRPC, CLI). Data is never nil.
type AggregationResult struct {
	Success      bool           `json:"success"`
	Data         []LineItemView `json:"data"`
	Message      string         `json:"message,omitempty"`
	Meta         *Meta          `json:"meta,omitempty"`
	ErrorDetails *ErrorDetails  `json:"errorDetails,omitempty"`
}

type Meta struct {
	TotalFound     int `json:"totalFound"`
	TotalFormatted int `json:"totalFormatted"`
	ProductsFound  int `json:"productsFound"`
}

type ErrorDetails struct {
	Kind         ErrorKind `json:"kind"`
	Name         string    `json:"name,omitempty"`   // upstream error category, e.g. OBJECT_NOT_FOUND
	Status       int       `json:"status,omitempty"` // upstream HTTP status, 0 for transport errors
	Retryable    bool      `json:"retryable"`
	AttemptedIDs []string  `json:"attemptedIds,omitempty"`
	Cause        string    `json:"cause,omitempty"`
}

// Failure builds an unsuccessful envelope with an empty data array.
func Failure(kind ErrorKind, message string, details *ErrorDetails) AggregationResult {
	if details == nil {
		details = &ErrorDetails{}
	}
	details.Kind = kind
	return AggregationResult{
		Success:      false,
		Data:         []LineItemView{},
		Message:      message,
		ErrorDetails: details,
	}
}

// Kind returns the error kind of r, or "" when r succeeded.
func (r AggregationResult) Kind() ErrorKind {
	if r.Success || r.ErrorDetails == nil {
		return ""
	}
	return r.ErrorDetails.Kind
}
