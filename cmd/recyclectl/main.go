package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rhesis-ai/rhesis-backend/httpx"
	"github.com/rhesis-ai/rhesis-backend/recycleclient"
)

var (
	server    string
	token     string
	configDir string
	scope   string
	verbose bool

	logger *zap.Logger
	client *recycleclient.Client
)

var rootCmd = &cobra.Command{
	Use:   "recyclectl",
	Short: "Manage the Rhesis recycle bin",
	Long: `recyclectl talks to the recycle bin API of rhesisd.

Listing, restoring and purging need an admin token. The token is read from
--token, the RHESIS_TOKEN environment variable or the token key of
recyclectl.yaml in --config. The server resolves the same way.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := loadCLIConfig(configDir)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("server") && cfg.Server != "" {
			server = cfg.Server
		}
		if token == "" {
			token = cfg.Token
		}
		if token == "" {
			return fmt.Errorf("no token: set --token or RHESIS_TOKEN")
		}
		client = recycleclient.New(server, token, httpx.WithTracing(nil))
		logger.Debug("client ready", zap.String("server", server))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the entity types of the recycle bin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := client.Models(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), models)
	},
}

var (
	listSkip  int
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List soft-deleted entities of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := recycleclient.ListOptions{Skip: listSkip, Limit: listLimit}
		if cmd.Flags().Changed("scope") {
			opts.Scope = &scope
		}
		page, err := client.ListDeleted(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [type] [id]",
	Short: "Restore a soft-deleted entity and its cascading children",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.Restore(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var bulkRestoreCmd = &cobra.Command{
	Use:   "bulk-restore [type] [id...]",
	Short: "Restore several entities, reporting each one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.BulkRestore(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var yes bool

var purgeCmd = &cobra.Command{
	Use:   "purge [type] [id]",
	Short: "Permanently delete one entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !yes {
			return fmt.Errorf("purge is permanent, pass --yes to confirm")
		}
		if err := client.Purge(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{"purged": args[1]})
	},
}

var emptyCmd = &cobra.Command{
	Use:   "empty [type]",
	Short: "Permanently delete every soft-deleted entity of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !yes {
			return fmt.Errorf("empty is permanent, pass --yes to confirm")
		}
		n, err := client.Empty(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"model": args[0], "count": n})
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show the number of soft-deleted entities per type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := client.Counts(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), counts)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [type] [id]",
	Short: "Fetch an active entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := client.Get(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [type] [id]",
	Short: "Move an entity to the recycle bin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := client.SoftDelete(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "rhesisd base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $RHESIS_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding recyclectl.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	listCmd.Flags().IntVar(&listSkip, "skip", 0, "entities to skip")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "page size (server default when 0)")
	listCmd.Flags().StringVar(&scope, "scope", "", "organization to list; empty lists every organization")

	purgeCmd.Flags().BoolVar(&yes, "yes", false, "confirm the permanent deletion")
	emptyCmd.Flags().BoolVar(&yes, "yes", false, "confirm the permanent deletion")

	rootCmd.AddCommand(
		modelsCmd,
		listCmd,
		restoreCmd,
		bulkRestoreCmd,
		purgeCmd,
		emptyCmd,
		countsCmd,
		getCmd,
		deleteCmd,
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
