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
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

func TestResolveOperationFlags(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		opts     Options
		expected map[OpKind]Flags
	}{
		"Empty": {
			opts: Options{},
			expected: map[OpKind]Flags{
				OpSave:   {},
				OpUpdate: {},
				OpRemove: {},
			},
		},
		"Flat": {
			opts: Options{Operations: map[string]any{"safe": true, "w": true}},
			expected: map[OpKind]Flags{
				OpSave:   {"safe": true, "w": true},
				OpUpdate: {"safe": true, "w": true},
				OpRemove: {"safe": true, "w": true},
			},
		},
		"PerKindWithDeleteAlias": {
			opts: Options{Operations: map[string]any{
				"delete": map[string]any{"safe": true},
				"update": map[string]any{},
			}},
			expected: map[OpKind]Flags{
				OpSave:   {},
				OpUpdate: {},
				OpRemove: {"safe": true},
			},
		},
		"UnknownKindIgnored": {
			opts: Options{Operations: map[string]any{
				"insert": map[string]any{"fsync": true},
				"delete": map[string]any{"w": true, "fsync": true},
			}},
			expected: map[OpKind]Flags{
				OpSave:   {},
				OpUpdate: {},
				OpRemove: {"w": true, "fsync": true},
			},
		},
		"Legacy": {
			opts: Options{SafeInserts: true, WaitForSlaves: 5},
			expected: map[OpKind]Flags{
				OpSave:   {"safe": true, "w": 5},
				OpUpdate: {},
				OpRemove: {},
			},
		},
		"LegacyDoesNotOverrideExplicit": {
			opts: Options{
				Operations:    map[string]any{"save": map[string]any{"w": 2}},
				SafeInserts:   true,
				WaitForSlaves: 5,
			},
			expected: map[OpKind]Flags{
				OpSave:   {"w": 2, "safe": true},
				OpUpdate: {},
				OpRemove: {},
			},
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, ResolveOperationFlags(&tc.opts))
		})
	}
}

func TestFlagsWriteConcern(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Flags{}.WriteConcern())

	wc := Flags{"safe": true}.WriteConcern()
	require.NotNil(t, wc)
	assert.Equal(t, 1, wc.W)

	wc = Flags{"w": 5}.WriteConcern()
	require.NotNil(t, wc)
	assert.Equal(t, 5, wc.W)

	wc = Flags{"w": true}.WriteConcern()
	require.NotNil(t, wc)
	assert.Equal(t, 1, wc.W)

	wc = Flags{"fsync": true}.WriteConcern()
	require.NotNil(t, wc)
	assert.Equal(t, pointer.To(true), wc.Journal)

	expected := &writeconcern.WriteConcern{W: 3, Journal: pointer.To(true)}
	assert.Equal(t, expected, Flags{"w": 3, "j": true}.WriteConcern())
}
