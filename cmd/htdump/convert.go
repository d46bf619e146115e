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
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashtable"
	"github.com/cockroachdb/hashtable/internal/compress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// convertFile rewrites src into dst. dst is replaced atomically, and only if
// src is a valid dump.
func convertFile(src, dst string, options ...hashtable.DumpOption) (hashtable.DumpHeader, error) {
	in, err := os.Open(src)
	if err != nil {
		return hashtable.DumpHeader{}, err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".htdump-*")
	if err != nil {
		return hashtable.DumpHeader{}, err
	}
	defer os.Remove(out.Name())

	h, err := hashtable.Transcode(out, in, options...)
	if err != nil {
		out.Close()
		return h, errors.Wrapf(err, "%s", src)
	}
	if err := out.Close(); err != nil {
		return h, err
	}
	return h, os.Rename(out.Name(), dst)
}

func convertCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Rewrite a dump with a different compression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, level := a.cfg.Compression, a.cfg.Level
			if cmd.Flags().Changed("compression") {
				name, _ = cmd.Flags().GetString("compression")
			}
			if cmd.Flags().Changed("level") {
				level, _ = cmd.Flags().GetInt("level")
			}
			alg, err := compress.Parse(name)
			if err != nil {
				return err
			}
			h, err := convertFile(args[0], args[1],
				hashtable.WithCompression(alg), hashtable.WithCompressionLevel(level))
			if err != nil {
				return err
			}
			a.logger.Info("dump converted",
				zap.String("src", args[0]),
				zap.String("dst", args[1]),
				zap.Stringer("compression", alg),
				zap.Uint64("size", h.Size))
			return nil
		},
	}
	cmd.Flags().String("compression", "none", "payload compression: none, lz4 or zstd")
	cmd.Flags().Int("level", 0, "compression level, 0 for the default")
	return cmd
}
