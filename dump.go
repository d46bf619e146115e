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

package hashtable

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashtable/codec"
	"github.com/cockroachdb/hashtable/internal/compress"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// A dump is laid out as follows. All integers are little-endian.
//
//	header (48 bytes)
//	  magic        [4]byte  "HTBL"
//	  version      uint8
//	  kind         uint8
//	  compression  uint8
//	  key codec    uint8
//	  value codec  uint8
//	  reserved     [7]byte
//	  capacity     uint64
//	  size         uint64
//	  max load     uint64   IEEE-754 bits
//	  payload len  uint64   stored (possibly compressed) payload bytes
//	payload
//	  size records of: key len uint32, key, value len uint32, value
//	trailer
//	  digest       [32]byte SHA3-256 of the header and uncompressed payload
//
// Records are written in bucket order.
const (
	dumpMagic      = "HTBL"
	dumpVersion    = 1
	dumpHeaderSize = 48
	dumpDigestSize = 32

	// maxRecordLen bounds the length of a single key or value so that a
	// corrupt length cannot make Restore allocate without limit.
	maxRecordLen = 1 << 30
)

// Compression selects how a dump payload is compressed.
type Compression = compress.Algorithm

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZstd = compress.Zstd
)

// DumpHeader describes a dump.
type DumpHeader struct {
	Version       uint8
	Kind          Kind
	Compression   Compression
	KeyCodec      codec.ID
	ValueCodec    codec.ID
	Capacity      uint64
	Size          uint64
	MaxLoadFactor float64
	// PayloadLen is the number of payload bytes as stored, after
	// compression.
	PayloadLen uint64
}

func (h *DumpHeader) encode() []byte {
	b := make([]byte, dumpHeaderSize)
	copy(b[0:4], dumpMagic)
	b[4] = h.Version
	b[5] = uint8(h.Kind)
	b[6] = uint8(h.Compression)
	b[7] = uint8(h.KeyCodec)
	b[8] = uint8(h.ValueCodec)
	binary.LittleEndian.PutUint64(b[16:], h.Capacity)
	binary.LittleEndian.PutUint64(b[24:], h.Size)
	binary.LittleEndian.PutUint64(b[32:], math.Float64bits(h.MaxLoadFactor))
	binary.LittleEndian.PutUint64(b[40:], h.PayloadLen)
	return b
}

func decodeDumpHeader(b []byte) (DumpHeader, error) {
	if string(b[0:4]) != dumpMagic {
		return DumpHeader{}, errors.Wrapf(ErrFormat, "bad magic %q", b[0:4])
	}
	h := DumpHeader{
		Version:       b[4],
		Kind:          Kind(b[5]),
		Compression:   Compression(b[6]),
		KeyCodec:      codec.ID(b[7]),
		ValueCodec:    codec.ID(b[8]),
		Capacity:      binary.LittleEndian.Uint64(b[16:]),
		Size:          binary.LittleEndian.Uint64(b[24:]),
		MaxLoadFactor: math.Float64frombits(binary.LittleEndian.Uint64(b[32:])),
		PayloadLen:    binary.LittleEndian.Uint64(b[40:]),
	}
	if h.Version != dumpVersion {
		return h, errors.Wrapf(ErrFormat, "unsupported version %d", h.Version)
	}
	if h.Kind < KindFlatMap || h.Kind > KindNodeSet {
		return h, errors.Wrapf(ErrFormat, "unknown kind %d", uint8(h.Kind))
	}
	if !h.Compression.Valid() {
		return h, errors.Wrapf(ErrFormat, "unknown compression %d", uint8(h.Compression))
	}
	for i := 9; i < 16; i++ {
		if b[i] != 0 {
			return h, errors.Wrapf(ErrFormat, "reserved byte %d is %#x", i, b[i])
		}
	}
	if !(h.MaxLoadFactor > 0 && h.MaxLoadFactor < 1) {
		return h, errors.Wrapf(ErrFormat, "max load factor %v not in (0, 1)", h.MaxLoadFactor)
	}
	if c := h.Capacity; c != 0 && (c < groupSize || c&(c-1) != 0) {
		return h, errors.Wrapf(ErrFormat, "capacity %d is not a power of two >= %d", c, groupSize)
	}
	if h.Capacity > uint64(math.MaxInt)/2 {
		return h, errors.Wrapf(ErrFormat, "capacity %d does not fit in memory", h.Capacity)
	}
	if budget := budgetFor(uintptr(h.Capacity), h.MaxLoadFactor); h.Size > uint64(budget) {
		return h, errors.Wrapf(ErrFormat, "size %d exceeds the budget %d of capacity %d",
			h.Size, budget, h.Capacity)
	}
	return h, nil
}

// ReadDumpHeader reads and validates the header at the start of a dump.
func ReadDumpHeader(r io.Reader) (DumpHeader, error) {
	var b [dumpHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return DumpHeader{}, markFormat(err, "reading header")
	}
	return decodeDumpHeader(b[:])
}

// markFormat wraps an error that made a dump unreadable so that it matches
// ErrFormat while keeping its cause.
func markFormat(err error, msg string) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errors.Mark(errors.Wrap(err, msg), ErrFormat)
}

// ScanDump reads a dump from r, calling fn for every record. The slices
// passed to fn are only valid until fn returns. ScanDump validates the whole
// dump, including the digest, so a nil error means every record fn saw was
// intact. An error returned by fn stops the scan and is returned as is.
func ScanDump(r io.Reader, fn func(key, value []byte) error) (DumpHeader, error) {
	return scanDump(r, nil, fn)
}

func scanDump(
	r io.Reader, onHeader func(h DumpHeader) error, onRecord func(key, value []byte) error,
) (DumpHeader, error) {
	var hb [dumpHeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return DumpHeader{}, markFormat(err, "reading header")
	}
	h, err := decodeDumpHeader(hb[:])
	if err != nil {
		return h, err
	}
	if onHeader != nil {
		if err := onHeader(h); err != nil {
			return h, err
		}
	}

	digest := sha3.New256()
	digest.Write(hb[:])

	payload := io.LimitReader(r, int64(min(h.PayloadLen, math.MaxInt64)))
	dr, err := compress.NewReader(payload, h.Compression)
	if err != nil {
		return h, markFormat(err, "reading payload")
	}
	defer dr.Close()
	pr := io.TeeReader(dr, digest)

	var key, value []byte
	for i := uint64(0); i < h.Size; i++ {
		if key, err = readField(pr, key[:0]); err != nil {
			return h, errors.Wrapf(err, "record %d key", i)
		}
		if value, err = readField(pr, value[:0]); err != nil {
			return h, errors.Wrapf(err, "record %d value", i)
		}
		if err := onRecord(key, value); err != nil {
			return h, err
		}
	}

	// The payload must end with the last record.
	var extra [1]byte
	if n, err := io.ReadFull(pr, extra[:]); n != 0 {
		return h, errors.Wrapf(ErrFormat, "trailing data after %d records", h.Size)
	} else if err != io.EOF {
		return h, markFormat(err, "reading payload")
	}
	if n, err := io.Copy(io.Discard, payload); err != nil {
		return h, markFormat(err, "reading payload")
	} else if n != 0 {
		return h, errors.Wrapf(ErrFormat, "%d trailing payload bytes", n)
	}
	if payload.(*io.LimitedReader).N != 0 {
		return h, errors.Wrap(ErrFormat, "payload truncated")
	}

	var sum [dumpDigestSize]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return h, markFormat(err, "reading digest")
	}
	if !bytes.Equal(sum[:], digest.Sum(nil)) {
		return h, errors.Wrap(ErrFormat, "digest mismatch")
	}
	return h, nil
}

func readField(r io.Reader, buf []byte) ([]byte, error) {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return buf, markFormat(err, "reading length")
	}
	n := binary.LittleEndian.Uint32(lb[:])
	if n > maxRecordLen {
		return buf, errors.Wrapf(ErrFormat, "length %d exceeds the maximum of %d", n, maxRecordLen)
	}
	if uint32(cap(buf)) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		return buf, markFormat(err, "reading data")
	}
	return buf, nil
}

func appendField(dst, field []byte) ([]byte, error) {
	if len(field) > maxRecordLen {
		return dst, errors.Newf("length %d exceeds the maximum of %d", len(field), maxRecordLen)
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(field)))
	return append(dst, field...), nil
}

// writeDump compresses the raw records and writes out the complete dump.
// The header's compression and payload length are filled in.
func writeDump(w io.Writer, h DumpHeader, records []byte, cfg dumpConfig) error {
	payload := records
	if cfg.compression != CompressionNone {
		var buf bytes.Buffer
		cw, err := compress.NewWriter(&buf, cfg.compression, cfg.level)
		if err != nil {
			return err
		}
		if _, err := cw.Write(records); err != nil {
			return errors.Wrap(err, "compressing payload")
		}
		if err := cw.Close(); err != nil {
			return errors.Wrap(err, "compressing payload")
		}
		payload = buf.Bytes()
	}

	h.Version = dumpVersion
	h.Compression = cfg.compression
	h.PayloadLen = uint64(len(payload))
	hb := h.encode()

	digest := sha3.New256()
	digest.Write(hb)
	digest.Write(records)

	for _, b := range [][]byte{hb, payload, digest.Sum(nil)} {
		if _, err := w.Write(b); err != nil {
			return errors.Wrap(err, "writing dump")
		}
	}
	return nil
}

type dumpConfig struct {
	compression Compression
	level       int
}

// DumpOption configures how a dump is written.
type DumpOption func(c *dumpConfig)

// WithCompression compresses the dump payload.
func WithCompression(c Compression) DumpOption {
	return func(cfg *dumpConfig) {
		cfg.compression = c
	}
}

// WithCompressionLevel sets the compression level. Zero selects the
// algorithm's default.
func WithCompressionLevel(level int) DumpOption {
	return func(cfg *dumpConfig) {
		cfg.level = level
	}
}

func makeDumpConfig(options []DumpOption) (dumpConfig, error) {
	var cfg dumpConfig
	for _, op := range options {
		op(&cfg)
	}
	if !cfg.compression.Valid() {
		return cfg, errors.Wrapf(ErrInvalidOption, "unknown compression %d", uint8(cfg.compression))
	}
	return cfg, nil
}

// Transcode copies the dump read from src to dst, re-encoding the payload
// with the given options. The source dump is fully validated; nothing is
// written to dst if it is malformed.
func Transcode(dst io.Writer, src io.Reader, options ...DumpOption) (DumpHeader, error) {
	cfg, err := makeDumpConfig(options)
	if err != nil {
		return DumpHeader{}, err
	}
	var records []byte
	h, err := ScanDump(src, func(key, value []byte) error {
		if records, err = appendField(records, key); err != nil {
			return err
		}
		records, err = appendField(records, value)
		return err
	})
	if err != nil {
		return h, err
	}
	if err := writeDump(dst, h, records, cfg); err != nil {
		return h, err
	}
	h.Compression = cfg.compression
	return h, nil
}

func (t *table[K, V, E, P]) dump(
	w io.Writer, keys codec.Codec[K], values codec.Codec[V], options []DumpOption,
) error {
	cfg, err := makeDumpConfig(options)
	if err != nil {
		return err
	}

	var records, field []byte
	for i := uintptr(0); i < t.capacity; i++ {
		if t.ctrls[i]&ctrlEmpty != 0 {
			continue
		}
		e := &t.slots[i]
		if field, err = keys.Append(field[:0], *t.policy.key(e)); err != nil {
			return errors.Wrap(err, "encoding key")
		}
		if records, err = appendField(records, field); err != nil {
			return err
		}
		if field, err = values.Append(field[:0], *t.policy.value(e)); err != nil {
			return errors.Wrap(err, "encoding value")
		}
		if records, err = appendField(records, field); err != nil {
			return err
		}
	}

	h := DumpHeader{
		Kind:          t.kind,
		KeyCodec:      keys.ID(),
		ValueCodec:    values.ID(),
		Capacity:      uint64(t.capacity),
		Size:          uint64(t.used),
		MaxLoadFactor: t.maxLoad,
	}
	if err := writeDump(w, h, records, cfg); err != nil {
		return err
	}
	if ce := t.logger.Check(zap.DebugLevel, "hashtable dumped"); ce != nil {
		ce.Write(
			zap.Stringer("kind", t.kind),
			zap.Int("len", t.used),
			zap.Stringer("compression", cfg.compression),
			zap.Int("payload-bytes", len(records)),
		)
	}
	return nil
}

// restore loads a dump into a fresh table and swaps it in on success.
func (t *table[K, V, E, P]) restore(r io.Reader, keys codec.Codec[K], values codec.Codec[V]) error {
	fresh := table[K, V, E, P]{
		config: t.config,
		ctrls:  emptyCtrls,
		kind:   t.kind,
	}

	onHeader := func(h DumpHeader) error {
		if h.Kind.isSet() != t.kind.isSet() {
			return errors.Wrapf(ErrFormat, "cannot restore a %s dump into a %s", h.Kind, t.kind)
		}
		if !codec.Compatible(h.KeyCodec, keys.ID()) {
			return errors.Wrapf(ErrFormat, "dump keys use the %s codec, not %s", h.KeyCodec, keys.ID())
		}
		if !codec.Compatible(h.ValueCodec, values.ID()) {
			return errors.Wrapf(ErrFormat, "dump values use the %s codec, not %s", h.ValueCodec, values.ID())
		}
		if h.Capacity > uint64(t.maxCapacity) {
			return errors.Wrapf(ErrFormat, "capacity %d exceeds the maximum of %d", h.Capacity, t.maxCapacity)
		}
		fresh.maxLoad = h.MaxLoadFactor
		if fresh.minLoad >= fresh.maxLoad/2 {
			// The dumped max load factor leaves no room for the configured
			// min load factor.
			fresh.minLoad = 0
		}
		return nil
	}

	onRecord := func(kb, vb []byte) error {
		key, err := keys.Decode(kb)
		if err != nil {
			return markFormat(err, "decoding key")
		}
		value, err := values.Decode(vb)
		if err != nil {
			return markFormat(err, "decoding value")
		}
		if _, ok := fresh.find(key); ok {
			return errors.Wrapf(ErrFormat, "duplicate key %v", key)
		}
		return fresh.uncheckedPut(fresh.hash(key), key, value)
	}

	// The table grows with the records actually read. The dumped capacity is
	// only allocated once the digest has been checked.
	h, err := scanDump(r, onHeader, onRecord)
	if err != nil {
		return err
	}
	if c := uintptr(h.Capacity); c > fresh.capacity {
		if err := fresh.resize(c); err != nil {
			return err
		}
	}

	fresh.mutations = t.mutations + 1
	fresh.resizes = t.resizes
	fresh.compactions = t.compactions
	*t = fresh

	if ce := t.logger.Check(zap.DebugLevel, "hashtable restored"); ce != nil {
		ce.Write(
			zap.Stringer("kind", t.kind),
			zap.Stringer("dump-kind", h.Kind),
			zap.Int("len", t.used),
			zap.Uint64("capacity", uint64(t.capacity)),
			zap.Stringer("compression", h.Compression),
		)
	}
	return nil
}
