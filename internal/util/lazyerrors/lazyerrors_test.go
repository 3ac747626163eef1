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

package lazyerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Parallel()

	err := New("err")
	err1 := Errorf("err1: %w", err)
	err2 := Errorf("err2: %w", err1)

	assert.Contains(t, err.Error(), "lazyerrors_test.go:")
	assert.Contains(t, err.Error(), "err")
	assert.Contains(t, err2.Error(), "err2:")

	assert.True(t, errors.Is(err2, err1))
	assert.True(t, errors.Is(err2, err))
}

func TestError(t *testing.T) {
	t.Parallel()

	base := errors.New("base")
	err := Error(base)

	assert.True(t, errors.Is(err, base))
	assert.Contains(t, err.Error(), "base")

	assert.Panics(t, func() { _ = Error(nil) })
}

func TestUnwrapAll(t *testing.T) {
	t.Parallel()

	assert.Nil(t, UnwrapAll(nil))

	base := errors.New("base")
	err := Errorf("wrapped: %w", Error(base))
	require.Equal(t, base, UnwrapAll(err))
}
