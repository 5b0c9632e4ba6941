// Package serde encodes and decodes link events as JSON.
package serde

import (
	"sync"

	"github.com/ugorji/go/codec"
)

// resolver holds a shared encoder and decoder.
type resolver struct {
	jsonEncoder *codec.Encoder
	jsonDecoder *codec.Decoder
	jsonHandle  codec.JsonHandle

	jsonData []byte

	jsonMu sync.Mutex
}

var gendecoder resolver

func init() {
	gendecoder.jsonHandle = codec.JsonHandle{}
	gendecoder.jsonHandle.ErrorIfNoField = true
	gendecoder.jsonHandle.TypeInfos = codec.NewTypeInfos([]string{"json"})

	gendecoder.jsonData = make([]byte, 0, 1024)
	gendecoder.jsonEncoder = codec.NewEncoderBytes(&gendecoder.jsonData, &gendecoder.jsonHandle)
	gendecoder.jsonDecoder = codec.NewDecoderBytes(nil, &gendecoder.jsonHandle)
}

// MarshalJson encodes v as JSON. The returned slice is owned by the caller.
func MarshalJson[T any](v T) ([]byte, error) {
	gendecoder.jsonMu.Lock()
	defer gendecoder.jsonMu.Unlock()

	gendecoder.jsonData = gendecoder.jsonData[:0]
	gendecoder.jsonEncoder.ResetBytes(&gendecoder.jsonData)

	if err := gendecoder.jsonEncoder.Encode(v); err != nil {
		return nil, err
	}

	return append([]byte(nil), gendecoder.jsonData...), nil
}

// UnmarshalJson decodes JSON data into marshalTo, which must be a pointer.
func UnmarshalJson[T any](data []byte, marshalTo T) error {
	gendecoder.jsonMu.Lock()
	defer gendecoder.jsonMu.Unlock()

	gendecoder.jsonDecoder.ResetBytes(data)

	return gendecoder.jsonDecoder.Decode(marshalTo)
}
