// Package main provides the relkv CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relkv/relkv/pkg/config"
	"github.com/relkv/relkv/pkg/engine"
	"github.com/relkv/relkv/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relkv",
		Short: "relkv - embedded entity-relationship store inspection",
		Long: `relkv inspects a durable relkv data directory: the stored
entities, the raw key-value contents, and the append-only audit trail.

A data directory holds two badger stores:
  <data-dir>/primary   entity records, counters, alias entries
  <data-dir>/audit     the append-only audit trail

All commands open the stores read-only, so they are safe to run next to
a live process.`,
	}
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default from RELKV_DATA_DIR or ./data)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relkv v%s (%s)\n", version, commit)
		},
	})

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Export stored entities as JSON grouped by type and id",
		RunE:  runDump,
	}
	dumpCmd.Flags().Bool("pretty", false, "Indent the JSON output")
	rootCmd.AddCommand(dumpCmd)

	rawDumpCmd := &cobra.Command{
		Use:   "raw-dump",
		Short: "Export the raw key-value contents, internal keys included",
		RunE:  runRawDump,
	}
	rawDumpCmd.Flags().Bool("pretty", false, "Indent the JSON output")
	rootCmd.AddCommand(rawDumpCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Print audit trail entries in id order",
		RunE:  runAudit,
	}
	auditCmd.Flags().Int64("from", 0, "First audit id, inclusive (0 = oldest)")
	auditCmd.Flags().Int64("to", 0, "Last audit id, exclusive (0 = newest)")
	rootCmd.AddCommand(auditCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print store statistics",
		RunE:  runStats,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase opens the primary and audit stores read-only and wraps
// them in an engine handle. The caller must call the returned close
// function.
func openDatabase(cmd *cobra.Command) (*engine.Database, func(), error) {
	if err := config.LoadDotenv(""); err != nil {
		return nil, nil, err
	}
	cfg := config.LoadFromEnv()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	primary, err := storage.NewBadgerStoreWithOptions(storage.BadgerOptions{
		DataDir:      filepath.Join(cfg.DataDir, "primary"),
		ReadOnly:     true,
		MaxKeySize:   cfg.MaxKeySize,
		MaxValueSize: cfg.MaxValueSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening primary store: %w", err)
	}
	audit, err := storage.NewBadgerStoreWithOptions(storage.BadgerOptions{
		DataDir:  filepath.Join(cfg.DataDir, "audit"),
		ReadOnly: true,
	})
	if err != nil {
		primary.Close()
		return nil, nil, fmt.Errorf("opening audit store: %w", err)
	}

	db, err := engine.New(engine.Options{
		Store:        primary,
		AuditStore:   audit,
		AuditEnabled: cfg.AuditEnabled,
	})
	if err != nil {
		primary.Close()
		audit.Close()
		return nil, nil, err
	}
	closeAll := func() {
		primary.Close()
		audit.Close()
	}
	return db, closeAll, nil
}

func runDump(cmd *cobra.Command, args []string) error {
	db, closeAll, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer closeAll()

	pretty, _ := cmd.Flags().GetBool("pretty")
	out, err := db.DumpJSON(pretty)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runRawDump(cmd *cobra.Command, args []string) error {
	db, closeAll, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer closeAll()

	pretty, _ := cmd.Flags().GetBool("pretty")
	out, err := db.RawDumpJSON(pretty)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	db, closeAll, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer closeAll()

	from, _ := cmd.Flags().GetInt64("from")
	to, _ := cmd.Flags().GetInt64("to")
	entries, err := db.GetAudit(from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOP\tTIMESTAMP\tKEY")
	for _, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", entry.ID, entry.Op, entry.Timestamp, entry.Key)
	}
	return w.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	db, closeAll, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer closeAll()

	total, err := db.Store().Len()
	if err != nil {
		return err
	}
	keys, err := db.Store().Keys()
	if err != nil {
		return err
	}
	records := 0
	system := 0
	for _, key := range keys {
		if _, _, ok := engine.SplitKey(key); ok && key[0] != '_' {
			records++
		} else {
			system++
		}
	}

	fmt.Printf("keys:     %d\n", total)
	fmt.Printf("records:  %d\n", records)
	fmt.Printf("system:   %d\n", system)
	return nil
}
