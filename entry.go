package ogtree

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
)

// Unpickle decodes one pickle from data.
//
// Bytes after STOP are ignored. config may be nil.
func Unpickle(data []byte, config *DecoderConfig) (Value, error) {
	v, err := NewDecoderWithConfig(bytes.NewReader(data), config).Decode()
	if err == io.EOF {
		// there is no next pickle to report: empty input is a broken pickle
		return nil, &DecodeError{Err: ErrTruncatedInput}
	}
	return v, err
}

// UnpickleBase64 decodes one pickle from base64 text s.
//
// Decoding of base64 is lenient: whitespace, line breaks and missing
// padding are accepted, and both standard and URL-safe alphabets are
// understood.
func UnpickleBase64(s string, config *DecoderConfig) (Value, error) {
	data, err := decodeBase64(s)
	if err != nil {
		return nil, err
	}
	return Unpickle(data, config)
}

// UnpickleSignedBase64 decodes a "signed" pickle from base64 text s.
//
// The decoded data is expected to be `prefix:payload`. Everything up to and
// including the first ':' is dropped and the rest is decoded as pickle.
//
// NOTE the prefix is NOT verified: whatever the prefix is, including a
// forged or absent signature, the payload is decoded all the same. Callers
// that need authenticity must check it themselves, for example with
// SplitSigned, before trusting the result.
func UnpickleSignedBase64(s string, config *DecoderConfig) (Value, error) {
	data, err := decodeBase64(s)
	if err != nil {
		return nil, err
	}
	_, payload, err := SplitSigned(data)
	if err != nil {
		return nil, err
	}
	return Unpickle(payload, config)
}

// SplitSigned splits data at the first ':' into prefix and payload.
//
// The separator itself belongs to neither part. If there is no ':',
// ErrNoSeparator is returned.
func SplitSigned(data []byte) (prefix, payload []byte, err error) {
	prefix, payload, ok := bytes.Cut(data, []byte(":"))
	if !ok {
		return nil, nil, ErrNoSeparator
	}
	return prefix, payload, nil
}

// decodeBase64 decodes s trying std and URL-safe alphabets.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, "=")

	data, err := base64.RawStdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if data, err2 := base64.RawURLEncoding.DecodeString(s); err2 == nil {
		return data, nil
	}
	return nil, err
}
