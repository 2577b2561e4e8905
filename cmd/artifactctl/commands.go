package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/DRSN-tech/go-recommender/internal/app"
	config "github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/artifact"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	"github.com/spf13/cobra"
)

func newRootCmd(log logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "artifactctl",
		Short:         "Validate, inspect and publish two-tower retrieval artifacts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newValidateCmd(log),
		newInspectCmd(log),
		newPublishCmd(log),
	)

	return root
}

func newValidateCmd(log logger.Logger) *cobra.Command {
	var (
		dir    string
		policy string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load an artifact directory exactly as the server does and print its stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := loadDir(cmd.Context(), dir, policy, log)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), model.Stats())
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "artifact directory with manifest.json")
	cmd.Flags().StringVar(&policy, "oov-policy", config.OOVPolicyPlaceholder, "placeholder | reject")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

type inspectResult struct {
	Version         string          `json:"version"`
	UserID          string          `json:"user_id,omitempty"`
	Recommendations []domain.Scored `json:"recommendations,omitempty"`
	ProductID       string          `json:"product_id,omitempty"`
	Related         []domain.Scored `json:"related_products,omitempty"`
}

func newInspectCmd(log logger.Logger) *cobra.Command {
	var (
		dir       string
		policy    string
		userID    string
		productID string
		k         int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run both retrieval paths locally against an artifact directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" && productID == "" {
				return fmt.Errorf("at least one of --user or --product is required: %w", e.ErrStatusBadRequest)
			}

			model, err := loadDir(cmd.Context(), dir, policy, log)
			if err != nil {
				return err
			}

			res := inspectResult{Version: model.Version()}
			if userID != "" {
				res.UserID = userID
				if res.Recommendations, err = model.Recommend(userID, k); err != nil {
					return err
				}
			}
			if productID != "" {
				res.ProductID = productID
				if res.Related, err = model.Similar(productID, k); err != nil {
					return err
				}
			}

			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "artifact directory with manifest.json")
	cmd.Flags().StringVar(&policy, "oov-policy", config.OOVPolicyPlaceholder, "placeholder | reject")
	cmd.Flags().StringVar(&userID, "user", "", "user id for recommendations")
	cmd.Flags().StringVar(&productID, "product", "", "product id for related products")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func newPublishCmd(log logger.Logger) *cobra.Command {
	var (
		dir      string
		version  string
		activate bool
		mirror   bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload an artifact directory under <version>/ and register it",
		Long: "Publish validates the directory, uploads it to the configured artifact store " +
			"(ARTIFACT_SOURCE), registers the version in PostgreSQL when POSTGRES_DB is set " +
			"and optionally mirrors product vectors into Qdrant.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pub, err := app.NewPublisher(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := pub.Closer.Close(context.Background()); err != nil {
					log.Warnf("%v", err)
				}
			}()

			res, err := pub.UseCase.Publish(ctx, &usecase.PublishReq{
				Dir:      dir,
				Version:  version,
				Activate: activate,
				Mirror:   mirror,
			})
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "artifact directory with manifest.json")
	cmd.Flags().StringVar(&version, "version", "", "artifact version, defaults to the manifest version")
	cmd.Flags().BoolVar(&activate, "activate", false, "make the version active and notify servers")
	cmd.Flags().BoolVar(&mirror, "mirror-qdrant", false, "mirror normalised product vectors into Qdrant")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func loadDir(ctx context.Context, dir, policy string, log logger.Logger) (*retrieval.Model, error) {
	oov, err := retrieval.ParseOOVPolicy(policy)
	if err != nil {
		return nil, err
	}

	loader, _, err := artifact.NewDirOpener(oov, log).Open(dir)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return loader.Load(ctx, domain.ManifestFile)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
