package apdu

import (
	"fmt"

	"github.com/andrei-cloud/go_hce/internal/errorcodes"
)

// Response is a response APDU: optional data followed by the status word.
type Response struct {
	Data   []byte
	Status errorcodes.StatusWord
}

// NewResponse returns a response carrying data with status sw.
func NewResponse(data []byte, sw errorcodes.StatusWord) Response {
	return Response{Data: append([]byte(nil), data...), Status: sw}
}

// StatusOnly returns a response with no data.
func StatusOnly(sw errorcodes.StatusWord) Response {
	return Response{Status: sw}
}

// Bytes serialises the response as data || SW1 || SW2.
func (r Response) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)

	return append(out, r.Status.SW1, r.Status.SW2)
}

// ParseResponse splits a raw response frame into data and status word.
func ParseResponse(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, fmt.Errorf("%w: response of %d bytes has no status word", ErrMalformed, len(raw))
	}

	n := len(raw) - 2

	return Response{
		Data:   append([]byte(nil), raw[:n]...),
		Status: errorcodes.Lookup(raw[n], raw[n+1]),
	}, nil
}
