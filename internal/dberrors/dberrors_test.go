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

package dberrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := New(ErrorCodeInvalidIdentifier, "got %q instead", "helloworldwhatsup")
	assert.Equal(t, `InvalidIdentifier: got "helloworldwhatsup" instead`, err.Error())
	assert.Equal(t, ErrorCodeInvalidIdentifier, err.Code())

	assert.True(t, ErrorCodeIs(err, ErrorCodeInvalidIdentifier))
	assert.True(t, ErrorCodeIs(err, ErrorCodeUnsupportedQuery, ErrorCodeInvalidIdentifier))
	assert.False(t, ErrorCodeIs(err, ErrorCodeUnsupportedQuery))
	assert.False(t, ErrorCodeIs(errors.New("other"), ErrorCodeInvalidIdentifier))

	assert.Panics(t, func() { New(0, "boom") })
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("file not found")
	err := Wrap(ErrorCodeMissingPayload, cause, "payload %s", "deadbeef")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "MissingPayload: payload deadbeef: file not found", err.Error())
}

func TestErrorCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "RestrictedOperation", ErrorCodeRestrictedOperation.String())
	assert.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}
