package main

import (
	"context"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/internal/seed"
	"github.com/diagnosis/luxsuv-tours/internal/service"
	"github.com/diagnosis/luxsuv-tours/pkg/config"
	"github.com/diagnosis/luxsuv-tours/pkg/database"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:           "seed",
	Short:         "Load or remove the development data set",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Insert tours, users and reviews from the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			data, err := seed.Load(dataDir)
			if err != nil {
				return err
			}
			if err := mongodb.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			if err := seed.Import(ctx, db, data, service.NewPasswords(argon2id.DefaultParams)); err != nil {
				return err
			}
			logger.Info("Data successfully loaded",
				"tours", len(data.Tours), "users", len(data.Users), "reviews", len(data.Reviews))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove every tour, user and review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			if err := seed.Delete(ctx, db); err != nil {
				return err
			}
			logger.Info("Data successfully deleted")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "dev-data", "directory holding tours.json, users.json and reviews.json")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(deleteCmd)
}

func withDatabase(ctx context.Context, fn func(context.Context, *mongo.Database) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	return fn(ctx, db)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}
