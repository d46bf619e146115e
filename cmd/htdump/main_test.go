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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/hashtable"
	"github.com/cockroachdb/hashtable/codec"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func writeTestDump(t *testing.T, dir, name string, n int, options ...hashtable.DumpOption) string {
	t.Helper()
	m := hashtable.NewFlatMap[string, string](n)
	for i := 0; i < n; i++ {
		_, err := m.Put("k"+strconv.Itoa(i), strconv.Itoa(i))
		require.NoError(t, err)
	}
	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf, codec.String, codec.String, options...))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDump(t, dir, "a.ht", 10, hashtable.WithCompression(hashtable.CompressionZstd))

	out, err := run(t, "inspect", path)
	require.NoError(t, err)

	var info headerInfo
	require.NoError(t, sonnet.Unmarshal([]byte(out), &info))
	require.Equal(t, path, info.File)
	require.Equal(t, "flat-map", info.Kind)
	require.Equal(t, "zstd", info.Compression)
	require.Equal(t, "string", info.KeyCodec)
	require.EqualValues(t, 10, info.Size)
	require.Equal(t, hashtable.DefaultMaxLoadFactor, info.MaxLoadFactor)

	_, err = run(t, "inspect", filepath.Join(dir, "missing.ht"))
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	good := writeTestDump(t, dir, "good.ht", 100, hashtable.WithCompression(hashtable.CompressionLZ4))
	empty := writeTestDump(t, dir, "empty.ht", 0)

	out, err := run(t, "verify", "-j", "2", good, empty)
	require.NoError(t, err)
	require.Equal(t, []string{
		"ok   " + good + " (100 records)",
		"ok   " + empty + " (0 records)",
	}, lines(out))

	// Flip the last byte of the payload so the digest no longer matches.
	bad := writeTestDump(t, dir, "bad.ht", 100)
	data, err := os.ReadFile(bad)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(bad, data, 0o644))

	out, err = run(t, "verify", good, bad)
	require.Error(t, err)
	got := lines(out)
	require.Len(t, got, 2)
	require.Equal(t, "ok   "+good+" (100 records)", got[0])
	require.True(t, strings.HasPrefix(got[1], "FAIL "+bad+": "), got[1])

	_, err = run(t, "verify", "--jobs", "0", good)
	require.Error(t, err)
}

func TestCat(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDump(t, dir, "a.ht", 20)

	out, err := run(t, "cat", path)
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 20)
	seen := make(map[string]string)
	for _, l := range got {
		var r record
		require.NoError(t, sonnet.Unmarshal([]byte(l), &r))
		seen[r.Key] = r.Value
	}
	for i := 0; i < 20; i++ {
		require.Equal(t, strconv.Itoa(i), seen["k"+strconv.Itoa(i)])
	}

	out, err = run(t, "cat", "--limit", "5", path)
	require.NoError(t, err)
	require.Len(t, lines(out), 5)

	out, err = run(t, "cat", "--hex", "-n", "1", path)
	require.NoError(t, err)
	var r record
	require.NoError(t, sonnet.Unmarshal([]byte(out), &r))
	require.True(t, strings.HasPrefix(r.Key, "6b"), r.Key)
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	src := writeTestDump(t, dir, "src.ht", 50)
	dst := filepath.Join(dir, "dst.ht")

	_, err := run(t, "convert", "--compression", "zstd", "--level", "3", src, dst)
	require.NoError(t, err)
	h, err := readHeader(dst)
	require.NoError(t, err)
	require.Equal(t, hashtable.CompressionZstd, h.Compression)
	require.EqualValues(t, 50, h.Size)

	m := hashtable.NewFlatMap[string, string](0)
	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, m.Restore(f, codec.String, codec.String))
	require.Equal(t, 50, m.Len())

	_, err = run(t, "convert", "--compression", "gzip", src, dst)
	require.Error(t, err)

	// A failed conversion leaves the destination alone.
	before, err := os.ReadFile(dst)
	require.NoError(t, err)
	_, err = run(t, "convert", filepath.Join(dir, "missing.ht"), dst)
	require.Error(t, err)
	after, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	src := writeTestDump(t, dir, "src.ht", 10)
	dst := filepath.Join(dir, "dst.ht")
	logFile := filepath.Join(dir, "htdump.log")

	cfgPath := filepath.Join(dir, "htdump.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log_level = "info"
log_file = "`+logFile+`"
compression = "lz4"
level = 4
`), 0o644))

	_, err := run(t, "--config", cfgPath, "convert", src, dst)
	require.NoError(t, err)
	h, err := readHeader(dst)
	require.NoError(t, err)
	require.Equal(t, hashtable.CompressionLZ4, h.Compression)

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(logged), "dump converted")

	// Flags win over the file.
	_, err = run(t, "--config", cfgPath, "convert", "--compression", "none", src, dst)
	require.NoError(t, err)
	h, err = readHeader(dst)
	require.NoError(t, err)
	require.Equal(t, hashtable.CompressionNone, h.Compression)

	require.NoError(t, os.WriteFile(cfgPath, []byte("colour = \"blue\"\n"), 0o644))
	_, err = run(t, "--config", cfgPath, "inspect", src)
	require.ErrorContains(t, err, "unknown key colour")

	_, err = run(t, "--log-level", "loud", "inspect", src)
	require.Error(t, err)
}
