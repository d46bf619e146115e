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
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashtable"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

type headerInfo struct {
	File          string  `json:"file"`
	Version       uint8   `json:"version"`
	Kind          string  `json:"kind"`
	Compression   string  `json:"compression"`
	KeyCodec      string  `json:"key_codec"`
	ValueCodec    string  `json:"value_codec"`
	Capacity      uint64  `json:"capacity"`
	Size          uint64  `json:"size"`
	MaxLoadFactor float64 `json:"max_load_factor"`
	PayloadLen    uint64  `json:"payload_len"`
}

func makeHeaderInfo(file string, h hashtable.DumpHeader) headerInfo {
	return headerInfo{
		File:          file,
		Version:       h.Version,
		Kind:          h.Kind.String(),
		Compression:   h.Compression.String(),
		KeyCodec:      h.KeyCodec.String(),
		ValueCodec:    h.ValueCodec.String(),
		Capacity:      h.Capacity,
		Size:          h.Size,
		MaxLoadFactor: h.MaxLoadFactor,
		PayloadLen:    h.PayloadLen,
	}
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func inspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dump-file>...",
		Short: "Print dump headers as JSON",
		Long:  "Print the header of each dump file as a JSON line. The payload is not read.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				h, err := readHeader(path)
				if err != nil {
					return err
				}
				if err := writeJSONLine(cmd.OutOrStdout(), makeHeaderInfo(path, h)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func readHeader(path string) (hashtable.DumpHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return hashtable.DumpHeader{}, err
	}
	defer f.Close()
	h, err := hashtable.ReadDumpHeader(f)
	return h, errors.Wrapf(err, "%s", path)
}
