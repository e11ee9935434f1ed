package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bulwise/bulwise/config"
	"github.com/bulwise/bulwise/internal/analytics"
	"github.com/bulwise/bulwise/internal/server"
)

func main() {
	var cfgPath string

	root := &cobra.Command{Use: "bulwise", SilenceUsage: true}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the advisory HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.Run()
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var subject string
	var ttl time.Duration
	token := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			tok, err := server.SignJWT(subject, []byte(cfg.Server.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	token.Flags().StringVar(&subject, "subject", "admin", "token subject")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	var exportCSV string
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize the query log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Analytics.Enabled {
				return fmt.Errorf("analytics disabled in config")
			}
			store, err := analytics.Open(cfg.Analytics.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()
			if exportCSV != "" {
				return writeCSV(ctx, store, exportCSV)
			}
			return printSummary(ctx, store)
		},
	}
	analyticsCmd.Flags().StringVar(&exportCSV, "export", "", "write the full query log to a CSV file")

	root.AddCommand(serve, token, analyticsCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printSummary(ctx context.Context, store *analytics.Store) error {
	sum, err := store.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Total queries:     %d\n", sum.TotalQueries)
	fmt.Printf("Unique sessions:   %d\n", sum.UniqueSessions)
	fmt.Printf("Return users:      %d\n", sum.ReturnUsers)
	fmt.Printf("Budget mentioned:  %d\n", sum.BudgetMentioned)
	fmt.Printf("Rate limit hits:   %d\n", sum.RateLimitHits)
	fmt.Printf("Avg query length:  %.1f (max %d)\n", sum.AvgQueryLength, sum.MaxQueryLength)
	if len(sum.Categories) > 0 {
		fmt.Println("Categories:")
		for _, cc := range sum.Categories {
			fmt.Printf("  %-20s %d\n", cc.Category, cc.Count)
		}
	}
	return nil
}

func writeCSV(ctx context.Context, store *analytics.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := store.ExportCSV(ctx, f); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
