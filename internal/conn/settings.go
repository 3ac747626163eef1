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

package conn

import (
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Settings describes a single logical connection.
type Settings struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Debug selects the instrumented collection wrapper.
	Debug bool

	Options Options
}

// Options is the OPTIONS sub-map of the settings.
type Options struct {
	// SlaveOkay allows reads from secondaries.
	SlaveOkay bool

	// NetworkTimeout bounds single store operations.
	NetworkTimeout time.Duration

	// TZAware keeps decoded datetimes in UTC; when false they are
	// converted to the local zone on read.
	TZAware bool

	// DocumentClass returns a fresh decode target for query results.
	// It must return a pointer. Defaults to *bson.D.
	DocumentClass func() any

	// Operations carries per-operation-kind write-concern flags.
	// Values are either flag maps keyed by operation kind, or a flat
	// flag set applied to every kind. See ResolveOperationFlags.
	Operations map[string]any

	// Legacy options, merged into the save operation's flags only.
	SafeInserts   bool
	WaitForSlaves int
}

func (s *Settings) uri() string {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}

	if s.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(s.Port))
	}

	return "mongodb://" + host
}

func (s *Settings) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(s.uri())

	if s.Username != "" {
		opts.SetAuth(options.Credential{
			Username: s.Username,
			Password: s.Password,
		})
	}

	if s.Options.NetworkTimeout > 0 {
		opts.SetTimeout(s.Options.NetworkTimeout)
	}

	if s.Options.SlaveOkay {
		opts.SetReadPreference(readpref.SecondaryPreferred())
	}

	return opts
}
