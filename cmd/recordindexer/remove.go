package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/record-indexer/pkg/utils"
)

func remove(c *cli.Context) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	sugar, err := utils.NewSugaredLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	cfg, err := buildStoreConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	store, err := openStore(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	sugar.Infow("snapshot removed", "location", store.Location())
	return nil
}
