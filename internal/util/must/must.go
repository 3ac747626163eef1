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

// Package must provides helpers that panic on error.
//
// Use only at sites where an error indicates a programming mistake,
// not a runtime condition.
package must

import "github.com/mongorel/mongorel/internal/util/lazyerrors"

// NotFail panics on error, returns res otherwise.
func NotFail[T any](res T, err error) T {
	NoError(err)
	return res
}

// NoError panics on error.
func NoError(err error) {
	if err != nil {
		panic(lazyerrors.Error(err))
	}
}
