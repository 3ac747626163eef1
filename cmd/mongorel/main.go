// Copyright 2021 Mongorel Authors
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

// Package main contains the mongorel command, which validates a schema
// definition, connects to MongoDB, and synchronizes the indexes every
// registered model declares.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "golang.org/x/crypto/x509roots/fallback" // register root TLS certificates for production Docker image

	"github.com/mongorel/mongorel/internal/conn"
	"github.com/mongorel/mongorel/internal/indexes"
	"github.com/mongorel/mongorel/internal/schema"
	"github.com/mongorel/mongorel/internal/util/logging"
)

// version is set by the linker.
var version = "unknown"

// The cli struct represents all command-line commands, fields and flags.
// It's used for parsing the user input.
var cli struct {
	Version bool `default:"false" help:"Print version to stdout and exit." env:"-"`

	Host     string `default:"127.0.0.1" help:"MongoDB host."`
	Port     int    `default:"27017"     help:"MongoDB port."`
	Database string `default:""          help:"Database name."`
	Username string `default:""          help:"Authentication username."`
	Password string `default:""          help:"Authentication password."`

	Schema string `default:"schema.json" help:"Path to the schema definition file." type:"path"`

	Debug bool `default:"false" help:"Instrument collections and collect per-operation metrics." negatable:""`

	Log struct {
		Level string `default:"info" help:"${help_log_level}"`
	} `embed:"" prefix:"log-"`
}

// Additional variables for the kong parsers.
var (
	logLevels = []string{
		zap.DebugLevel.String(),
		zap.InfoLevel.String(),
		zap.WarnLevel.String(),
		zap.ErrorLevel.String(),
	}

	kongOptions = []kong.Option{
		kong.Vars{
			"help_log_level": fmt.Sprintf("Log level: '%s'.", strings.Join(logLevels, "', '")),
		},
		kong.DefaultEnvars("MONGOREL"),
	}
)

func main() {
	kong.Parse(&cli, kongOptions...)

	run()
}

// run sets up environment and runs index synchronization.
func run() {
	if cli.Version {
		fmt.Fprintln(os.Stdout, "version:", version)

		return
	}

	var level zapcore.Level
	if err := level.Set(cli.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Setup(level, "")
	logger := zap.L()

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		logger.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}
	defer undo()

	if cli.Database == "" {
		logger.Fatal("Database name is required.")
	}

	b, err := os.ReadFile(cli.Schema)
	if err != nil {
		logger.Fatal("Failed to read schema definition.", zap.Error(err))
	}

	models, err := schema.FromJSON(b)
	if err != nil {
		logger.Fatal("Failed to parse schema definition.", zap.Error(err))
	}

	ctx := context.Background()

	c, err := conn.Connect(ctx, &conn.Settings{
		Host:     cli.Host,
		Port:     cli.Port,
		Database: cli.Database,
		Username: cli.Username,
		Password: cli.Password,
		Debug:    cli.Debug,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect.", zap.Error(err))
	}

	defer func() {
		if err := c.Disconnect(ctx); err != nil {
			logger.Warn("Failed to disconnect.", zap.Error(err))
		}
	}()

	release := conn.Default().Activate("default", c)
	defer release()

	if cli.Debug {
		prometheus.MustRegister(c.Metrics())
		logger.Debug("Resolved operation flags.", zap.Any("flags", c.OperationFlags()))
	}

	var created int

	for _, m := range models {
		n, err := indexes.Sync(ctx, c.Collection(m.Collection()), m, logger)
		if err != nil {
			logger.Fatal(
				"Index synchronization failed.",
				zap.String("model", m.Name()), zap.Error(err),
			)
		}

		created += n
	}

	logger.Info("Index synchronization complete.", zap.Int("models", len(models)), zap.Int("created", created))
}
