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

// Package indexes reconciles declared model indexes against the live
// index set of a collection.
package indexes

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mongorel/mongorel/internal/conn"
	"github.com/mongorel/mongorel/internal/schema"
	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// keyName returns the direction-tagged name part for a single index key.
func keyName(k conn.IndexKeyInfo) string {
	if k.Descending {
		return k.Column + "_-1"
	}

	return k.Column + "_1"
}

// Name returns the index name for the given keys: per-key names joined
// with underscores, in declaration order.
func Name(keys []conn.IndexKeyInfo) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = keyName(k)
	}

	return strings.Join(parts, "_")
}

// Plan computes the target index set for a model: one single-field index
// per field with an index spec, plus one index per declared compound
// specification. Indexes are built on storage columns; foreign keys are
// followed to their id column.
func Plan(m *schema.Model) []conn.IndexInfo {
	var res []conn.IndexInfo

	for _, f := range m.Fields() {
		if !f.Index {
			continue
		}

		keys := []conn.IndexKeyInfo{{
			Column:     f.StorageColumn(),
			Descending: f.Descending,
		}}

		res = append(res, conn.IndexInfo{
			Name:   Name(keys),
			Keys:   keys,
			Unique: f.Unique,
			Sparse: f.Sparse,
		})
	}

	for _, ix := range m.Indexes() {
		keys := make([]conn.IndexKeyInfo, len(ix.Keys))

		for i, k := range ix.Keys {
			keys[i] = conn.IndexKeyInfo{
				Column:     m.Column(k.Field),
				Descending: k.Direction == schema.Descending,
			}
		}

		res = append(res, conn.IndexInfo{
			Name:   Name(keys),
			Keys:   keys,
			Unique: ix.Unique,
			Sparse: ix.Sparse,
		})
	}

	return res
}

// Sync makes the collection's live index set cover the model's declared
// indexes, creating only the missing ones. It is idempotent.
func Sync(ctx context.Context, c conn.Collection, m *schema.Model, l *zap.Logger) (int, error) {
	if l == nil {
		l = zap.NewNop()
	}

	existing, err := c.IndexInformation(ctx)
	if err != nil {
		return 0, lazyerrors.Error(err)
	}

	var created int

	for _, ix := range Plan(m) {
		if _, ok := existing[ix.Name]; ok {
			l.Debug("Index is up to date",
				zap.String("collection", c.Name()),
				zap.String("index", ix.Name))

			continue
		}

		if _, err := c.CreateIndex(ctx, ix); err != nil {
			return created, lazyerrors.Errorf("failed to create index %s on %s: %w", ix.Name, c.Name(), err)
		}

		l.Info("Created index",
			zap.String("collection", c.Name()),
			zap.String("index", ix.Name))

		created++
	}

	return created, nil
}
