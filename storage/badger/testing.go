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

package badger

import (
	"errors"

	"github.com/poiesic/tensorvault/storage"
)

// Repositories bundles every repository over a single backend.
type Repositories struct {
	Backend     *Backend
	Tensors     storage.TensorRepository
	Jobs        storage.JobRepository
	Permissions storage.PermissionRepository
	Groups      storage.GroupRepository
	Audit       storage.AuditRepository
	Snapshots   storage.IndexSnapshotRepository
}

// NewRepositories creates every repository over backend.
func NewRepositories(backend *Backend) (*Repositories, error) {
	repos := &Repositories{Backend: backend}
	var err error
	if repos.Tensors, err = NewTensorRepository(backend); err != nil {
		return nil, err
	}
	if repos.Jobs, err = NewJobQueue(backend); err != nil {
		return nil, err
	}
	if repos.Permissions, err = NewPermissionRepository(backend); err != nil {
		return nil, err
	}
	if repos.Groups, err = NewGroupRepository(backend); err != nil {
		return nil, err
	}
	if repos.Audit, err = NewAuditRepository(backend); err != nil {
		return nil, err
	}
	if repos.Snapshots, err = NewSnapshotRepository(backend); err != nil {
		return nil, err
	}
	return repos, nil
}

// Close closes every repository and then the backend.
func (r *Repositories) Close() error {
	var errs []error
	for _, repo := range []storage.Repository{r.Tensors, r.Jobs, r.Permissions, r.Groups, r.Audit, r.Snapshots} {
		if repo != nil {
			errs = append(errs, repo.Close())
		}
	}
	if r.Backend != nil {
		errs = append(errs, r.Backend.Close())
	}
	return errors.Join(errs...)
}

// NewMemoryRepositories creates every repository over an in-memory backend
// for testing. Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := NewMemoryBackend()
	if err != nil {
		return nil, err
	}
	repos, err := NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return repos, nil
}
