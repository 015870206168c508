package types

// Response is the envelope rendered by the gateway when the pipeline
// rejects a request. Successful forwards stream the backend response
// untouched and never pass through this shape.
type Response struct {
	Result bool            `json:"result"`
	Data   interface{}     `json:"data,omitempty"`
	Errors *ResponseErrors `json:"errors,omitempty"`
}

type ResponseErrors struct {
	Codes   []int          `json:"codes"`
	Details []ErrorDetail  `json:"details"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse builds the rejection envelope for one error code.
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Result: false,
		Errors: &ResponseErrors{
			Codes:   []int{code},
			Details: []ErrorDetail{{Code: code, Message: message}},
		},
	}
}
