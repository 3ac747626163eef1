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

package lob

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongorel/mongorel/internal/util/testutil"
)

// The cache is authoritative: once a handle is cached, reads return it
// without consulting the store, even if the cache was overwritten.
func TestCacheIsAuthoritative(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	var s State
	s.filelike = "sentinel"

	v, err := s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", v)
}

// An assigned file-like value is held verbatim: the exact object is
// retrievable unmodified before save, and its stream is not consumed.
func TestSetPreservesIdentity(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	fh := strings.NewReader("payload")

	var s State
	s.Set(fh)

	v, err := s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Same(t, fh, v)
	assert.EqualValues(t, 7, fh.Len())
}

func TestUnsetStateIsEmpty(t *testing.T) {
	t.Parallel()

	var s State

	v, err := s.Get(testutil.Ctx(t), nil)
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, s.IsCached())

	_, stored := s.OID()
	assert.False(t, stored)
}

func TestPayloadReader(t *testing.T) {
	t.Parallel()

	r, err := payloadReader("foo")
	require.NoError(t, err)
	assert.NotNil(t, r)

	r, err = payloadReader([]byte("foo"))
	require.NoError(t, err)
	assert.NotNil(t, r)

	fh := strings.NewReader("foo")
	r, err = payloadReader(fh)
	require.NoError(t, err)
	assert.Same(t, fh, r)

	_, err = payloadReader(42)
	assert.Error(t, err)
}
