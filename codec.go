package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decoder decodes request bodies from a wire format. Serialization is an
// external collaborator: the engine only needs the decode half, and only for
// handlers that declare a body-bound parameter.
type Decoder interface {
	ContentType() string
	Decode(r io.Reader, v any) error
}

// jsonDecoder is the default body decoder.
type jsonDecoder struct{}

func (jsonDecoder) ContentType() string { return "application/json" }

func (jsonDecoder) Decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// decodeBody decodes raw body bytes with the given decoder into a generic
// value. A codec-level failure here is a server-class error, distinct from
// field validation.
func decodeBody(dec Decoder, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := dec.Decode(bytes.NewReader(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeBody, err)
	}
	return v, nil
}
