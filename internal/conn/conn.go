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

// Package conn manages the document store connection.
//
// It resolves per-operation write-concern flags from settings, exposes
// collection wrappers (plain or instrumented) and keeps a process-wide
// registry of named connections with scoped activation.
package conn

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// Conn is a live connection to the store.
type Conn struct {
	settings *Settings
	client   *mongo.Client
	db       *mongo.Database
	flags    map[OpKind]Flags
	uuid     string
	metrics  *Metrics
	l        *zap.Logger
}

// Connect establishes a connection for the given settings and pings the store.
func Connect(ctx context.Context, settings *Settings, l *zap.Logger) (*Conn, error) {
	if l == nil {
		l = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, settings.clientOptions())
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, lazyerrors.Error(err)
	}

	c := &Conn{
		settings: settings,
		client:   client,
		db:       client.Database(settings.Database),
		flags:    ResolveOperationFlags(&settings.Options),
		uuid:     uuid.New().String(),
		l:        l,
	}

	if settings.Debug {
		c.metrics = NewMetrics()
	}

	l.Info("Connected",
		zap.String("uri", settings.uri()),
		zap.String("database", settings.Database),
		zap.String("uuid", c.uuid))

	return c, nil
}

// Disconnect tears the connection down.
func (c *Conn) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// Collection returns a wrapper for the named collection.
// In debug configuration the wrapper is instrumented.
func (c *Conn) Collection(name string) Collection {
	pc := newPlainCollection(c.db, name, c.flags, c.settings.Options.DocumentClass)

	if !c.settings.Debug {
		return pc
	}

	return newDebugCollection(pc, c.metrics, c.l.Named("debug").With(zap.String("uuid", c.uuid)))
}

// Database returns the underlying driver database.
func (c *Conn) Database() *mongo.Database {
	return c.db
}

// OperationFlags returns the resolved per-operation write-concern flags.
func (c *Conn) OperationFlags() map[OpKind]Flags {
	return c.flags
}

// TZAware reports whether decoded datetimes should stay in UTC.
func (c *Conn) TZAware() bool {
	return c.settings.Options.TZAware
}

// Metrics returns the collector for the instrumented wrappers.
// It is nil unless the connection is in debug configuration.
func (c *Conn) Metrics() *Metrics {
	return c.metrics
}
