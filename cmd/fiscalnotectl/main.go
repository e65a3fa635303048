// Command fiscalnotectl is an operator CLI: enqueue a bill, check a job's
// state, and print a bill's notes to the terminal, structured as a cobra
// root command with one subcommand per operation.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/leginote/fiscalnote/internal/config"
	"github.com/leginote/fiscalnote/internal/database"
	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/queue"
	"github.com/leginote/fiscalnote/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "fiscalnotectl",
	Short:         "fiscalnotectl — operate the fiscal-note generation pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(enqueueCmd, statusCmd, notesCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func connectOptionalDB(cfg *config.Config) *gorm.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := database.Connect(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil
	}
	_ = database.Migrate(db)
	return db
}

func loadOrchestrator() *queue.Orchestrator {
	cfg := config.Load()
	return queue.New(cfg, connectOptionalDB(cfg))
}

var (
	flagChamber string
	flagNumber  int
	flagYear    int
)

func addBillFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagChamber, "chamber", "", "Bill chamber, H or S")
	cmd.Flags().IntVar(&flagNumber, "number", 0, "Bill number")
	cmd.Flags().IntVar(&flagYear, "year", time.Now().Year(), "Bill year")
	cmd.MarkFlagRequired("chamber")
	cmd.MarkFlagRequired("number")
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a bill for fiscal-note generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := models.BillID{Chamber: flagChamber, Number: flagNumber, Year: flagYear}
		job := loadOrchestrator().Enqueue(id)
		fmt.Printf("job %s: %s\n", job.ID, job.State)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a bill's job status",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := models.BillID{Chamber: flagChamber, Number: flagNumber, Year: flagYear}
		job, ok := loadOrchestrator().Job(id.Canonical())
		if !ok {
			return fmt.Errorf("no job found for %s", id.Canonical())
		}

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"FIELD", "VALUE"})
		tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		tw.SetAlignment(tablewriter.ALIGN_LEFT)
		tw.Append([]string{"id", job.ID})
		tw.Append([]string{"state", string(job.State)})
		tw.Append([]string{"started_at", job.StartedAt})
		tw.Append([]string{"finished_at", job.FinishedAt})
		tw.Append([]string{"error_kind", job.ErrorKind})
		tw.Append([]string{"error", job.Error})
		tw.Render()
		return nil
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Print a bill's fiscal-note sections for one checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := models.BillID{Chamber: flagChamber, Number: flagNumber, Year: flagYear}
		cfg := config.Load()

		bill, err := store.New(cfg.BillsRoot, id.Canonical())
		if err != nil {
			return err
		}

		checkpoint, _ := cmd.Flags().GetString("checkpoint")
		if checkpoint == "" {
			names, err := store.ListNoteNames(bill)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("no notes found for %s", id.Canonical())
			}
			checkpoint = names[len(names)-1]
		}

		var note models.FiscalNote
		if err := store.ReadJSON(bill.NotePath(checkpoint), &note); err != nil {
			return err
		}

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"SECTION", "BODY"})
		tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		tw.SetAlignment(tablewriter.ALIGN_LEFT)
		tw.SetColWidth(80)
		tw.SetAutoWrapText(true)
		for _, key := range models.SectionKeys {
			tw.Append([]string{key, note[key]})
		}
		tw.Render()
		return nil
	},
}

func init() {
	addBillFlags(enqueueCmd)
	addBillFlags(statusCmd)
	addBillFlags(notesCmd)
	notesCmd.Flags().String("checkpoint", "", "Checkpoint document name (defaults to the latest)")
}
