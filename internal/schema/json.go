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

package schema

import (
	"encoding/json"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// jsonSchema mirrors the schema description file consumed by the CLI.
type jsonSchema struct {
	Models []jsonModel `json:"models"`
}

type jsonModel struct {
	Name       string      `json:"name"`
	Collection string      `json:"collection"`
	Fields     []jsonField `json:"fields"`
	Indexes    []jsonIndex `json:"indexes"`
}

type jsonField struct {
	Name       string `json:"name"`
	Column     string `json:"column"`
	Kind       string `json:"kind"`
	PrimaryKey bool   `json:"primary_key"`
	Index      bool   `json:"index"`
	Descending bool   `json:"descending"`
	Unique     bool   `json:"unique"`
	Sparse     bool   `json:"sparse"`
	Ref        string `json:"ref"`
	Versioning bool   `json:"versioning"`
	AutoDelete bool   `json:"autodelete"`
}

type jsonIndex struct {
	Keys   []jsonIndexKey `json:"keys"`
	Unique bool           `json:"unique"`
	Sparse bool           `json:"sparse"`
}

type jsonIndexKey struct {
	Field     string `json:"field"`
	Direction int8   `json:"direction"`
}

var kindNames = map[string]Kind{
	"objectid":    KindObjectID,
	"string":      KindString,
	"int":         KindInt,
	"float":       KindFloat,
	"bool":        KindBool,
	"datetime":    KindDateTime,
	"raw":         KindRaw,
	"foreignkey":  KindForeignKey,
	"largeobject": KindLargeObject,
}

// FromJSON parses a schema description and returns validated models.
func FromJSON(b []byte) ([]*Model, error) {
	var s jsonSchema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, lazyerrors.Error(err)
	}

	res := make([]*Model, 0, len(s.Models))

	for _, jm := range s.Models {
		fields := make([]Field, len(jm.Fields))

		for i, jf := range jm.Fields {
			kind, ok := kindNames[jf.Kind]
			if !ok {
				return nil, lazyerrors.Errorf("model %s: field %s has unknown kind %q", jm.Name, jf.Name, jf.Kind)
			}

			fields[i] = Field{
				Name:       jf.Name,
				Column:     jf.Column,
				Kind:       kind,
				PrimaryKey: jf.PrimaryKey,
				Index:      jf.Index,
				Descending: jf.Descending,
				Unique:     jf.Unique,
				Sparse:     jf.Sparse,
				Ref:        jf.Ref,
				Versioning: jf.Versioning,
				AutoDelete: jf.AutoDelete,
			}
		}

		indexes := make([]Index, len(jm.Indexes))

		for i, ji := range jm.Indexes {
			keys := make([]IndexKey, len(ji.Keys))

			for j, jk := range ji.Keys {
				d := Ascending
				if jk.Direction < 0 {
					d = Descending
				}

				keys[j] = IndexKey{Field: jk.Field, Direction: d}
			}

			indexes[i] = Index{Keys: keys, Unique: ji.Unique, Sparse: ji.Sparse}
		}

		m, err := New(jm.Name, jm.Collection, fields, indexes)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		res = append(res, m)
	}

	return res, nil
}
