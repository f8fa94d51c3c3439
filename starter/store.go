package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storefront-access-gate/shared"
	"storefront-access-gate/store"
	"storefront-access-gate/tracker"
)

// openRepository connects to Postgres and Redis. The returned func releases both.
func openRepository(ctx context.Context) (*store.Repository, func(), error) {
	db, err := store.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	redisClient := store.NewRedisClient(&cfg.Redis)
	repo := store.NewRepository(db, store.NewFeed(redisClient, log, nil), log)
	return repo, func() {
		_ = redisClient.Close()
		_ = db.Close()
	}, nil
}

var createStoreCmd = &cobra.Command{
	Use:   "create-store <name> <owner-email>",
	Short: "Create a prospect store",
	Long: `Create a store record in the prospect status. Its onboarding window
starts now.`,
	Args:    cobra.ExactArgs(2),
	GroupID: "store",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, done, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		rec := &shared.StoreRecord{
			ID:         uuid.NewString(),
			Name:       args[0],
			OwnerEmail: args[1],
			CreatedAt:  time.Now().UTC(),
		}
		if err := repo.Create(cmd.Context(), rec); err != nil {
			return err
		}
		fmt.Printf("CREATED %s %s\n", rec.ID, rec.Name)
		return nil
	},
}

var trackCmd = &cobra.Command{
	Use:       "track <category|product|view> <store-id>",
	Short:     "Record an onboarding task event",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"category", "product", "view"},
	GroupID:   "store",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, done, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		t := tracker.New(repo, log, nil)
		ctx, storeID := cmd.Context(), args[1]
		switch args[0] {
		case "category":
			err = t.RecordCategoryCreated(ctx, storeID)
		case "product":
			err = t.RecordProductUploaded(ctx, storeID)
		case "view":
			err = t.RecordView(ctx, storeID)
		default:
			return fmt.Errorf("unknown task %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Printf("TRACKED %s %s\n", args[0], storeID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createStoreCmd, trackCmd)
}
