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
	"github.com/AlekSi/pointer"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"golang.org/x/exp/maps"
)

// OpKind is a write operation kind.
type OpKind string

// Operation kinds.
const (
	OpSave   OpKind = "save"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

var opKinds = []OpKind{OpSave, OpUpdate, OpRemove}

// opAliases maps accepted OPERATIONS keys to operation kinds.
// "delete" is accepted as an alias for remove; anything else
// (including "insert") is ignored.
var opAliases = map[string]OpKind{
	"save":   OpSave,
	"update": OpUpdate,
	"remove": OpRemove,
	"delete": OpRemove,
}

// Flags is a write-concern flag set for a single operation kind.
//
// Recognized keys: "safe" (bool), "w" (int or bool), "j" and "fsync" (bool).
type Flags map[string]any

// setDefault sets key to value unless an explicit entry exists.
func (f Flags) setDefault(key string, value any) {
	if _, ok := f[key]; !ok {
		f[key] = value
	}
}

// WriteConcern derives the driver write concern from the flags.
// Empty flags return nil, leaving the driver default in place.
func (f Flags) WriteConcern() *writeconcern.WriteConcern {
	if len(f) == 0 {
		return nil
	}

	wc := new(writeconcern.WriteConcern)

	switch w := f["w"].(type) {
	case int:
		wc.W = w
	case bool:
		if w {
			wc.W = 1
		}
	default:
		if safe, _ := f["safe"].(bool); safe {
			wc.W = 1
		}
	}

	j, _ := f["j"].(bool)
	fsync, _ := f["fsync"].(bool)

	if j || fsync {
		wc.Journal = pointer.To(true)
	}

	return wc
}

// ResolveOperationFlags resolves the OPERATIONS option and the legacy
// SAFE_INSERTS / WAIT_FOR_SLAVES options into per-kind flag sets.
//
// An OPERATIONS map containing no operation-kind keys is a flat flag set
// applied to every kind. Legacy options seed the save flags only and never
// override explicit entries.
func ResolveOperationFlags(opts *Options) map[OpKind]Flags {
	res := map[OpKind]Flags{
		OpSave:   {},
		OpUpdate: {},
		OpRemove: {},
	}

	var perKind bool

	for k := range opts.Operations {
		if _, ok := opAliases[k]; ok {
			perKind = true
			break
		}
	}

	switch {
	case perKind:
		for k, v := range opts.Operations {
			kind, ok := opAliases[k]
			if !ok {
				continue
			}

			switch sub := v.(type) {
			case Flags:
				maps.Copy(res[kind], sub)
			case map[string]any:
				maps.Copy(res[kind], sub)
			}
		}

	default:
		for _, kind := range opKinds {
			maps.Copy(res[kind], opts.Operations)
		}
	}

	if opts.SafeInserts {
		res[OpSave].setDefault("safe", true)
	}

	if opts.WaitForSlaves != 0 {
		res[OpSave].setDefault("w", opts.WaitForSlaves)
	}

	return res
}
