package models

// Response - struct for sending payload from server and more info about occurred error
// It behaves like Either Monad: 'Error' field is set if error occurred, otherwise 'Body' contains payload
type Response struct {
	Error RequestErrorCode `json:"error"`
	Body  interface{}      `json:"body"`
}

// RequestErrorCode - error code sent to the client in 'Error' field of Response
type RequestErrorCode interface {
	error
}

type requestErrorCode string

func (c requestErrorCode) Error() string {
	return string(c)
}

// NewRequestErrorCode - creates a new error code
func NewRequestErrorCode(code string) RequestErrorCode {
	return requestErrorCode(code)
}
