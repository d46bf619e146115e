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
	"encoding/hex"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashtable"
	"github.com/spf13/cobra"
)

var errStopScan = errors.New("stop scan")

type record struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

func catCommand(a *app) *cobra.Command {
	var limit int
	var useHex bool
	cmd := &cobra.Command{
		Use:   "cat <dump-file>",
		Short: "Print the records of a dump as JSON lines",
		Long: "Print the records of a dump as JSON lines in bucket order. " +
			"Without --limit the whole dump is verified as well.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			encode := func(b []byte) string { return string(b) }
			if useHex {
				encode = hex.EncodeToString
			}
			out := cmd.OutOrStdout()
			var n int
			_, err = hashtable.ScanDump(f, func(key, value []byte) error {
				if limit > 0 && n == limit {
					return errStopScan
				}
				n++
				return writeJSONLine(out, record{Key: encode(key), Value: encode(value)})
			})
			if errors.Is(err, errStopScan) {
				return nil
			}
			return errors.Wrapf(err, "%s", args[0])
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many records")
	cmd.Flags().BoolVar(&useHex, "hex", false, "print keys and values as hex")
	return cmd
}
