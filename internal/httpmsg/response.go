package httpmsg

import "net/http"

// Response is the single outgoing answer to a request.
type Response struct {
	message

	statusCode    int
	statusMessage string
}

// NewResponse builds a response. The reason phrase defaults to the
// standard text for the status code.
func NewResponse(status int, opts ...Option) *Response {
	o := buildOptions(opts)
	msg := o.statusMessage
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Response{
		message:       newMessage(o),
		statusCode:    status,
		statusMessage: msg,
	}
}

// StatusCode returns the numeric status.
func (r *Response) StatusCode() int { return r.statusCode }

// StatusMessage returns the reason phrase.
func (r *Response) StatusMessage() string { return r.statusMessage }
