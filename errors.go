// Copyright 2024 The Cockroach Authors
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

package hashtable

import "github.com/cockroachdb/errors"

var (
	// ErrCapacity is returned when a table would need to grow beyond its
	// maximum capacity. The table is left in the state it had before the
	// failed operation.
	ErrCapacity = errors.New("hashtable: capacity exceeded")

	// ErrConcurrentModification is reported when a table is structurally
	// modified while it is being iterated.
	ErrConcurrentModification = errors.New("hashtable: concurrent modification during iteration")

	// ErrFormat is returned by Restore and the dump scanning functions when
	// the input is not a well formed dump. Nothing is loaded in that case.
	ErrFormat = errors.New("hashtable: malformed dump")

	// ErrInvalidOption is the panic value (wrapped) for invalid table
	// construction options.
	ErrInvalidOption = errors.New("hashtable: invalid option")
)
