// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codec converts keys and values to and from the byte strings stored
// in hash table dumps.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/exp/constraints"
)

// ID identifies a codec in a dump header so that a dump is not decoded with
// a codec other than the one it was written with.
type ID uint8

const (
	// IDOpaque is recorded by codecs that do not identify themselves. It
	// matches any other ID.
	IDOpaque ID = iota
	IDString
	IDBytes
	IDInt
	IDFloat64
	IDEmpty
	IDJSON
)

func (id ID) String() string {
	switch id {
	case IDOpaque:
		return "opaque"
	case IDString:
		return "string"
	case IDBytes:
		return "bytes"
	case IDInt:
		return "int"
	case IDFloat64:
		return "float64"
	case IDEmpty:
		return "empty"
	case IDJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Compatible reports whether data written with codec a may be read with
// codec b.
func Compatible(a, b ID) bool {
	return a == IDOpaque || b == IDOpaque || a == b
}

// Codec encodes values of type T.
type Codec[T any] interface {
	// ID identifies the encoding.
	ID() ID
	// Append appends the encoding of v to dst.
	Append(dst []byte, v T) ([]byte, error)
	// Decode decodes a value previously encoded by Append. The returned value
	// must not retain b.
	Decode(b []byte) (T, error)
}

type stringCodec struct{ id ID }

func (c stringCodec) ID() ID { return c.id }

func (stringCodec) Append(dst []byte, v string) ([]byte, error) {
	return append(dst, v...), nil
}

func (stringCodec) Decode(b []byte) (string, error) {
	return string(b), nil
}

var (
	// String stores a string as its bytes.
	String Codec[string] = stringCodec{id: IDString}
	// Opaque is String without an identity: it reads any dump whose records
	// are to be treated as raw text.
	Opaque Codec[string] = stringCodec{id: IDOpaque}
)

type bytesCodec struct{}

func (bytesCodec) ID() ID { return IDBytes }

func (bytesCodec) Append(dst []byte, v []byte) ([]byte, error) {
	return append(dst, v...), nil
}

func (bytesCodec) Decode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

// Bytes stores a byte slice verbatim. Decoded slices are copies.
var Bytes Codec[[]byte] = bytesCodec{}

type intCodec[T constraints.Integer] struct{}

func (intCodec[T]) ID() ID { return IDInt }

func (intCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(dst, uint64(v)), nil
}

func (intCodec[T]) Decode(b []byte) (T, error) {
	if len(b) != 8 {
		return 0, errors.Newf("int: %d bytes, expected 8", len(b))
	}
	u := binary.LittleEndian.Uint64(b)
	v := T(u)
	if uint64(v) != u {
		return 0, errors.Newf("int: %#x overflows %T", u, v)
	}
	return v, nil
}

// Int stores an integer as 8 little-endian bytes, sign-extended for signed
// types. Dumps written with one integer type can be read with another as
// long as every value fits.
func Int[T constraints.Integer]() Codec[T] {
	return intCodec[T]{}
}

type float64Codec struct{}

func (float64Codec) ID() ID { return IDFloat64 }

func (float64Codec) Append(dst []byte, v float64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v)), nil
}

func (float64Codec) Decode(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, errors.Newf("float64: %d bytes, expected 8", len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Float64 stores the IEEE-754 bits of a float64.
var Float64 Codec[float64] = float64Codec{}

type emptyCodec struct{}

func (emptyCodec) ID() ID { return IDEmpty }

func (emptyCodec) Append(dst []byte, _ struct{}) ([]byte, error) {
	return dst, nil
}

func (emptyCodec) Decode(b []byte) (struct{}, error) {
	if len(b) != 0 {
		return struct{}{}, errors.Newf("empty: %d unexpected bytes", len(b))
	}
	return struct{}{}, nil
}

// Empty is the value codec of sets: it writes nothing.
var Empty Codec[struct{}] = emptyCodec{}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) ID() ID { return IDJSON }

func (jsonCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return dst, errors.Wrap(err, "json")
	}
	return append(dst, b...), nil
}

func (jsonCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if err := sonnet.Unmarshal(b, &v); err != nil {
		return v, errors.Wrap(err, "json")
	}
	return v, nil
}

// JSON stores values as JSON documents.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}
