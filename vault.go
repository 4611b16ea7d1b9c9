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

// Package tensorvault wires the tensor store, training queue, access
// control and retrieval services over a single badger database.
package tensorvault

import (
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/tensorvault/access"
	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/ai/openai"
	"github.com/poiesic/tensorvault/reembed"
	"github.com/poiesic/tensorvault/retrieval"
	"github.com/poiesic/tensorvault/storage"
	"github.com/poiesic/tensorvault/storage/badger"
	"github.com/poiesic/tensorvault/training"
)

// Vault owns an open database and the services built on it.
type Vault struct {
	repos     *badger.Repositories
	provider  ai.AIProvider
	enforcer  *access.Enforcer
	audit     *access.AuditLogger
	dimension int
	logger    *slog.Logger
}

// VaultOption configures a Vault.
type VaultOption func(*vaultOptions)

type vaultOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) VaultOption {
	return func(o *vaultOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider supplies a ready AI provider instead of building an
// OpenAI-compatible one. The vault closes it on Close.
func WithProvider(provider ai.AIProvider) VaultOption {
	return func(o *vaultOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every service.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) VaultOption {
	return func(o *vaultOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewVault opens a persistent vault at filePath.
func NewVault(filePath string, opts ...VaultOption) (*Vault, error) {
	return OpenVault(badger.DefaultConfig(filePath), opts...)
}

// OpenVault opens a vault over the badger database described by cfg.
func OpenVault(cfg badger.Config, opts ...VaultOption) (*Vault, error) {
	options := &vaultOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if cfg.Logger == nil {
		cfg.Logger = options.logger
	}

	backend, err := badger.Open(cfg)
	if err != nil {
		return nil, err
	}

	repos, err := badger.NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	audit, err := access.NewAuditLogger(repos.Audit)
	if err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}
	enforcer, err := access.NewEnforcer(repos.Permissions, repos.Groups,
		access.WithAuditLogger(audit),
		access.WithLogger(options.logger),
	)
	if err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}

	return &Vault{
		repos:     repos,
		provider:  provider,
		enforcer:  enforcer,
		audit:     audit,
		dimension: options.aiConfig.Dimension,
		logger:    options.logger.With("component", "vault"),
	}, nil
}

// Close releases the AI provider and the database. Both are closed even
// if one fails; the first error is returned.
func (v *Vault) Close() error {
	var g errgroup.Group
	g.Go(func() error {
		if err := v.provider.Close(); err != nil {
			v.logger.Error("error closing AI provider", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := v.repos.Close(); err != nil {
			v.logger.Error("error closing storage", "err", err)
			return err
		}
		return nil
	})
	return g.Wait()
}

// Tensors returns the tensor repository.
func (v *Vault) Tensors() storage.TensorRepository {
	return v.repos.Tensors
}

// Jobs returns the training job queue.
func (v *Vault) Jobs() storage.JobRepository {
	return v.repos.Jobs
}

// Permissions returns the permission repository.
func (v *Vault) Permissions() storage.PermissionRepository {
	return v.repos.Permissions
}

// Groups returns the group membership repository.
func (v *Vault) Groups() storage.GroupRepository {
	return v.repos.Groups
}

// Enforcer returns the permission enforcer.
func (v *Vault) Enforcer() *access.Enforcer {
	return v.enforcer
}

// Audit returns the audit logger.
func (v *Vault) Audit() *access.AuditLogger {
	return v.audit
}

// Embedder returns the embedder of the configured AI provider.
func (v *Vault) Embedder() ai.Embedder {
	return v.provider.Embedder()
}

// NewTrainer creates a parallel trainer over the vault's tensors and jobs.
// The caller must Release it.
func (v *Vault) NewTrainer(opts ...training.Option) (*training.ParallelTrainer, error) {
	opts = append([]training.Option{training.WithLogger(v.logger)}, opts...)
	return training.NewParallelTrainer(v.repos.Tensors, v.repos.Jobs, opts...)
}

// NewFacade creates a retrieval facade that persists its index in the
// vault. The index width follows the configured embedding dimension.
func (v *Vault) NewFacade(opts ...retrieval.Option) (*retrieval.Facade, error) {
	opts = append([]retrieval.Option{
		retrieval.WithDimension(v.dimension),
		retrieval.WithSnapshotRepository(v.repos.Snapshots),
		retrieval.WithLogger(v.logger),
	}, opts...)
	return retrieval.NewFacade(v.repos.Tensors, v.provider.Embedder(), opts...)
}

// NewReembedder creates a reembedder for every stored tensor.
func (v *Vault) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(v.repos.Tensors, v.provider.Embedder(), config, progress)
}
