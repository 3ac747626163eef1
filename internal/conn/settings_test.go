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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func TestSettingsURI(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	assert.Equal(t, "mongodb://127.0.0.1", s.uri())

	s = &Settings{Host: "db.example.com", Port: 27017}
	assert.Equal(t, "mongodb://db.example.com:27017", s.uri())
}

func TestSettingsClientOptions(t *testing.T) {
	t.Parallel()

	s := &Settings{
		Host:     "localhost",
		Port:     27017,
		Username: "u",
		Password: "p",
		Options: Options{
			SlaveOkay:      true,
			NetworkTimeout: 42 * time.Second,
		},
	}

	opts := s.clientOptions()

	require.NotNil(t, opts.Auth)
	assert.Equal(t, "u", opts.Auth.Username)

	require.NotNil(t, opts.Timeout)
	assert.Equal(t, 42*time.Second, *opts.Timeout)

	require.NotNil(t, opts.ReadPreference)
	assert.Equal(t, readpref.SecondaryPreferredMode, opts.ReadPreference.Mode())
}
