package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/tensorvault"
	"github.com/poiesic/tensorvault/config"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/reembed"
	"github.com/poiesic/tensorvault/retrieval"
	"github.com/poiesic/tensorvault/storage"
	"github.com/poiesic/tensorvault/training"
)

// runner holds the options shared by every command action.
type runner struct {
	vaultOpts []tensorvault.VaultOption
}

// open loads the configuration and opens the vault it describes.
func (r *runner) open(c *cli.Context) (*tensorvault.Vault, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts := append([]tensorvault.VaultOption{tensorvault.WithAIConfig(cfg.AI())}, r.vaultOpts...)
	v, err := tensorvault.OpenVault(cfg.Backend(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return v, cfg, nil
}

func (r *runner) facade(v *tensorvault.Vault, cfg *config.Config) (*retrieval.Facade, error) {
	return v.NewFacade(
		retrieval.WithEmbedBatchSize(cfg.Retrieval.BatchSize),
		retrieval.WithBuildConcurrency(cfg.Retrieval.Concurrency),
	)
}

// ensureIndex loads the persisted index, building and saving it when none
// exists yet.
func ensureIndex(ctx context.Context, f *retrieval.Facade) error {
	err := f.LoadIndex(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load index: %w", err)
	}
	if _, err := f.BuildIndex(ctx); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	return f.SaveIndex(ctx)
}

func (r *runner) stats(c *cli.Context) error {
	v, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	stats, err := v.Tensors().Stats(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Tensors:      %d\n", stats.TotalTensors)
	fmt.Fprintf(out, "Operational:  %d\n", stats.OperationalCount)
	fmt.Fprintf(out, "In training:  %d\n", stats.TrainingCount)
	fmt.Fprintf(out, "Avg maturity: %.3f\n", stats.AvgMaturity)
	fmt.Fprintf(out, "Versions:     %d\n", stats.TotalVersions)
	return nil
}

func (r *runner) list(c *cli.Context) error {
	v, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	records, err := v.Tensors().List(c.Context, storage.TensorFilter{
		EntityID: c.String("entity"),
		WorldID:  c.String("world"),
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(c.App.Writer, "%s\tentity=%s world=%s maturity=%.3f version=%d cycles=%d\n",
			rec.ID, rec.EntityID, rec.WorldID, rec.Maturity, rec.Version, rec.TrainingCycles)
	}
	return nil
}

func (r *runner) history(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("tensor id is required")
	}
	v, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	versions, err := v.Tensors().GetVersionHistory(c.Context, id)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("tensor %s: %w", id, storage.ErrNotFound)
	}
	for _, ver := range versions {
		fmt.Fprintf(c.App.Writer, "v%d\tmaturity=%.3f cycles=%d digest=%s at=%s\n",
			ver.Version, ver.Maturity, ver.TrainingCycles, core.TensorDigest(ver.Blob), ver.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func (r *runner) train(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one tensor id is required")
	}
	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	target := cfg.Training.TargetMaturity
	if c.IsSet("target") {
		target = c.Float64("target")
	}
	workers := cfg.Training.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}

	trainer, err := v.NewTrainer(
		training.WithMaxWorkers(workers),
		training.WithMaxCycles(cfg.Training.MaxCycles),
	)
	if err != nil {
		return err
	}
	defer trainer.Release()

	results, err := trainer.TrainBatch(c.Context, ids, target)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range slices.Sorted(maps.Keys(results)) {
		res := results[id]
		status := "ok"
		if !res.Success {
			status = "failed"
			if res.Err != nil {
				status += ": " + res.Err.Error()
			}
			failed++
		}
		fmt.Fprintf(c.App.Writer, "%s\tmaturity=%.3f cycles=%d duration=%s %s\n",
			id, res.FinalMaturity, res.CyclesCompleted, res.Duration.Round(time.Millisecond), status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tensors failed to train", failed, len(results))
	}
	return nil
}

func (r *runner) jobsPending(c *cli.Context) error {
	return r.listJobs(c, storage.JobRepository.ListPending)
}

func (r *runner) jobsRunning(c *cli.Context) error {
	return r.listJobs(c, storage.JobRepository.ListRunning)
}

func (r *runner) listJobs(c *cli.Context, fetch func(storage.JobRepository, context.Context) ([]*core.TrainingJob, error)) error {
	v, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	jobs, err := fetch(v.Jobs(), c.Context)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		fmt.Fprintf(c.App.Writer, "%s\ttensor=%s status=%s target=%.3f worker=%s\n",
			job.ID, job.TensorID, job.Status, job.TargetMaturity, job.WorkerID)
	}
	return nil
}

func (r *runner) jobsCleanup(c *cli.Context) error {
	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	timeout := cfg.Training.StaleTimeout
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
	}
	released, err := v.Jobs().CleanupStaleJobs(c.Context, timeout)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Released %d stale jobs\n", released)
	return nil
}

func (r *runner) reembed(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		OnlyMissing:    c.Bool("only-missing"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()
	reembedConfig.Dimension = cfg.Embedding.Dimension

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(progress, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(progress)

	summary, err := v.NewReembedder(reembedConfig, progress).Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}

	f, err := r.facade(v, cfg)
	if err != nil {
		return err
	}
	indexed, err := f.RebuildIndex(c.Context)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	if err := f.SaveIndex(c.Context); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d tensors, indexed %d\n", summary.Updated, indexed)
	return nil
}

func (r *runner) search(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	f, err := r.facade(v, cfg)
	if err != nil {
		return err
	}
	if err := ensureIndex(c.Context, f); err != nil {
		return err
	}

	results, err := f.Search(c.Context, query, retrieval.SearchOptions{
		Limit:       c.Int("limit"),
		MinMaturity: c.Float64("min-maturity"),
		Categories:  c.StringSlice("category"),
	})
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(c.App.Writer, "%.4f\t%s\t%s\n", res.Score, res.TensorID, res.Record.Description)
	}
	return nil
}

func (r *runner) seed(c *cli.Context) error {
	lines, err := linesFromFile(c.String("file"))
	if err != nil {
		return err
	}
	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	f, err := r.facade(v, cfg)
	if err != nil {
		return err
	}
	if err := ensureIndex(c.Context, f); err != nil {
		return err
	}

	added := 0
	for line := range lines {
		nt, ok, err := parseSeedLine(line)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		record, err := f.AddTensor(c.Context, nt)
		if err != nil {
			return fmt.Errorf("add %s: %w", nt.ID, err)
		}
		if _, err := v.Enforcer().CreateDefaultPermission(c.Context, record.ID, c.String("owner"), core.AccessPrivate); err != nil {
			return err
		}
		added++
	}
	if err := f.SaveIndex(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Added %d tensors\n", added)
	return nil
}

func (r *runner) auditSummary(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("tensor id is required")
	}
	v, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	summary, err := v.Audit().GetAccessSummary(c.Context, id, c.Int("hours"))
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Tensor:       %s (last %dh)\n", summary.TensorID, summary.WindowHours)
	fmt.Fprintf(out, "Total:        %d\n", summary.Total)
	fmt.Fprintf(out, "Successful:   %d\n", summary.Successful)
	fmt.Fprintf(out, "Failed:       %d\n", summary.Failed)
	fmt.Fprintf(out, "Unique users: %d\n", summary.UniqueUsers)
	for _, action := range core.Actions() {
		if n := summary.Actions[action]; n > 0 {
			fmt.Fprintf(out, "  %-6s %d\n", action, n)
		}
	}
	return nil
}

func (r *runner) auditCleanup(c *cli.Context) error {
	v, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer v.Close()

	days := cfg.Access.AuditRetentionDays
	if c.IsSet("days") {
		days = c.Int("days")
	}
	deleted, err := v.Audit().CleanupOldLogs(c.Context, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d audit entries older than %d days\n", deleted, days)
	return nil
}
