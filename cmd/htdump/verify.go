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
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashtable"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func verifyFile(path string) (hashtable.DumpHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return hashtable.DumpHeader{}, err
	}
	defer f.Close()
	return hashtable.ScanDump(f, func(key, value []byte) error { return nil })
}

func verifyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dump-file>...",
		Short: "Check dump files for corruption",
		Long: "Read every record of each dump file and check the digest. " +
			"Files are verified concurrently.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs := a.cfg.Jobs
			if cmd.Flags().Changed("jobs") {
				jobs, _ = cmd.Flags().GetInt("jobs")
			}
			if jobs < 1 {
				return errors.Newf("jobs must be positive, not %d", jobs)
			}

			results := make([]error, len(args))
			headers := make([]hashtable.DumpHeader, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					headers[i], results[i] = verifyFile(path)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			var failed int
			out := cmd.OutOrStdout()
			for i, path := range args {
				if err := results[i]; err != nil {
					failed++
					a.logger.Warn("dump verification failed", zap.String("file", path), zap.Error(err))
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				a.logger.Info("dump verified", zap.String("file", path), zap.Uint64("size", headers[i].Size))
				fmt.Fprintf(out, "ok   %s (%d records)\n", path, headers[i].Size)
			}
			if failed > 0 {
				return errors.Newf("%d of %d dumps failed verification", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntP("jobs", "j", 0, "number of files verified concurrently (default from config, else GOMAXPROCS)")
	return cmd
}
