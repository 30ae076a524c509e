package httpmsg

import (
	"bytes"
	"io"
)

// Body is a readable byte stream built from a buffer or another stream.
type Body struct {
	r io.Reader
}

// NewBody returns a body that yields b.
func NewBody(b []byte) *Body {
	return &Body{r: bytes.NewReader(b)}
}

// NewBodyReader returns a body that streams from r. Closing the body closes
// r when it is an io.Closer.
func NewBodyReader(r io.Reader) *Body {
	return &Body{r: r}
}

func (b *Body) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// Close releases the underlying stream.
func (b *Body) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Bytes drains the body.
func (b *Body) Bytes() ([]byte, error) {
	return io.ReadAll(b.r)
}
