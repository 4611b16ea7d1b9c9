// Copyright 2025 Poiesic Systems
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


// Package storage provides the storage abstraction layer for tensorvault.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic: tensors with version history, the training job queue,
// permissions, group membership, the audit log and embedding index snapshots.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return these interfaces to enforce
// abstraction and enable multiple storage backend implementations:
//
//	tensors, err := badger.NewTensorRepository(backend) // storage.TensorRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Concurrency Contract
//
// Every state change that can race (version bumps, job acquisition, permission
// read-modify-write) must be a single atomic conditional update against the
// store. Expected races surface as boolean results (SaveWithLock, AcquireJob),
// never as errors.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.NewMemoryBackend()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
