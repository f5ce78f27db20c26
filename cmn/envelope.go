package cmn

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the opaque inbound bundle every gateway/peer operation
// receives (SPEC_FULL §6.4). Decoding it under the shared secret is
// the secure-transport layer's job (out of scope); by the time it
// reaches the core, Body already holds the plaintext payload and the
// core's only remaining obligation is to unmarshal Body into the
// operation-specific tuple.
type Envelope struct {
	Body []byte
}

// NewEnvelope wraps an already-decoded payload. Used internally and
// by tests that exercise the core without a real transport layer.
func NewEnvelope(body []byte) Envelope { return Envelope{Body: body} }

// Decode unmarshals the envelope body into v, returning ErrInvalidData
// on failure per SPEC_FULL §6.4 ("the core treats envelope integrity
// as a precondition and fails with an unspecified transport error if
// it does not hold").
func (e Envelope) Decode(v interface{}) error {
	if len(e.Body) == 0 {
		return ErrInvalidData
	}
	if err := json.Unmarshal(e.Body, v); err != nil {
		return ErrInvalidData
	}
	return nil
}

// Encode marshals v into a new envelope.
func Encode(v interface{}) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, ErrInvalidData
	}
	return Envelope{Body: b}, nil
}

// MustEncode is Encode for call sites that construct the envelope
// from a value they just built and cannot fail to marshal (internal
// peer-RPC payloads, never user-controlled).
func MustEncode(v interface{}) Envelope {
	e, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return e
}
