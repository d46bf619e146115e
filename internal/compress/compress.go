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

// Package compress wraps the stream compressors used for dump payloads.
package compress

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a compression algorithm. The values are recorded in
// dump headers and must not change.
type Algorithm uint8

const (
	// None stores the payload as is.
	None Algorithm = 0
	// LZ4 uses the LZ4 frame format: fast, modest ratio.
	LZ4 Algorithm = 1
	// Zstd uses Zstandard: slower, better ratio.
	Zstd Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	return a <= Zstd
}

// Parse returns the Algorithm named s.
func Parse(s string) (Algorithm, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, errors.Newf("unknown compression %q", s)
	}
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer that compresses into w. Closing it flushes the
// compressed stream but does not close w. Level 0 selects the algorithm's
// default; otherwise lz4 accepts 1-9 and zstd accepts the zstd levels 1-22.
func NewWriter(w io.Writer, alg Algorithm, level int) (io.WriteCloser, error) {
	if level < 0 {
		return nil, errors.Newf("negative compression level %d", level)
	}
	switch alg {
	case None:
		return nopWriteCloser{w}, nil
	case LZ4:
		if level >= len(lz4Levels) {
			return nil, errors.Newf("lz4 level %d not in [0, %d]", level, len(lz4Levels)-1)
		}
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
			return nil, errors.Wrap(err, "lz4")
		}
		return zw, nil
	case Zstd:
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		return zw, nil
	default:
		return nil, errors.Newf("unknown compression %s", alg)
	}
}

// NewReader returns a reader that decompresses r. Closing it releases the
// decoder but does not close r.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None:
		return io.NopCloser(r), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, errors.Newf("unknown compression %s", alg)
	}
}
