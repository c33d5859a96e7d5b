package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Harshitk-cp/factgraph/internal/bootstrap"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/spf13/cobra"
)

var runSources []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pull sources, reconcile their claims and rebuild inferences",
	Long: `Pull every configured web and file source (or only those named with
--source), ingest each batch in its own transaction and rebuild the
inferred relationships if anything was committed.

Exits non-zero when any selected source failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withEngine(ctx, func(ctx context.Context, e *bootstrap.Engine) error {
			report, err := e.Runner.Run(ctx, runSources)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			var errs []error
			for _, s := range report.Sources {
				if err := s.Err(); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", s.SourceID, err))
				}
			}
			return errors.Join(errs...)
		})
	},
}

var submitSource string

var submitCmd = &cobra.Command{
	Use:   "submit <facts.json>",
	Short: "Ingest a JSON array of facts as one batch of a source",
	Long: `Ingest a JSON array of facts as one complete batch of --source.

The batch replaces everything the source claimed before: slots it no longer
mentions are withdrawn. An empty array withdraws all of the source's claims.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitSource == "" {
			return errors.New("--source is required")
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var facts []domain.ProvableFact
		if err := json.Unmarshal(raw, &facts); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			res, err := e.Runner.Submit(ctx, submitSource, facts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate inferred relationships from the active claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			res, err := e.Runner.Rebuild(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var entityCmd = &cobra.Command{
	Use:   "entity <key>",
	Short: "Show an entity with its current attribute values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			ent, err := e.Query.GetEntity(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ent)
		})
	},
}

var provenanceCmd = &cobra.Command{
	Use:   "provenance <key>",
	Short: "List every source claim about an entity, active and inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			edges, err := e.Query.Provenance(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), edges)
		})
	},
}

var claimsCmd = &cobra.Command{
	Use:   "claims <source>",
	Short: "List the claims a source currently holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			edges, err := e.Query.SourceClaims(ctx, args[0])
			if err != nil {
				return err
			}
			if edges == nil {
				edges = []domain.ProvenanceEdge{}
			}
			return printJSON(cmd.OutOrStdout(), edges)
		})
	},
}

var relation string

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "List inferred relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *bootstrap.Engine) error {
			rels, err := e.Query.Relationships(ctx, relation)
			if err != nil {
				return err
			}
			if rels == nil {
				rels = []domain.InferredRelationship{}
			}
			return printJSON(cmd.OutOrStdout(), rels)
		})
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runSources, "source", nil, "source id to pull (repeatable, default: all pull sources)")
	submitCmd.Flags().StringVar(&submitSource, "source", "", "source id the batch belongs to")
	relationshipsCmd.Flags().StringVar(&relation, "relation", "", "only list this relation")
}
