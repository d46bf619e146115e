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
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// config holds the settings that may come from a TOML file. Command line
// flags take precedence.
type config struct {
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	Jobs        int    `toml:"jobs"`
	Compression string `toml:"compression"`
	Level       int    `toml:"level"`
}

func defaultConfig() config {
	return config{
		LogLevel:    "warn",
		Jobs:        runtime.GOMAXPROCS(0),
		Compression: "none",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "loading config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.Newf("config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

func newLogger(cfg config, stderr io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	ws := zapcore.AddSync(stderr)
	if cfg.LogFile != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    64, // megabytes
			MaxBackups: 3,
		})
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, ws, level)), nil
}

// app is the state shared by the subcommands once the root command has
// parsed its flags.
type app struct {
	configPath string
	cfg        config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:          "htdump",
		Short:        "Inspect and convert hash table dump files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "TOML file with default settings")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "write logs to this file, rotating it as it grows")

	cmd.AddCommand(
		inspectCommand(a),
		verifyCommand(a),
		catCommand(a),
		convertCommand(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}
