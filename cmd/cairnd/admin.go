package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cairn-io/cairn/internal/config"
	"github.com/cairn-io/cairn/internal/journal"
)

// runAdmin handles admin subcommands.
func runAdmin(args []string) {
	if len(args) < 1 {
		printAdminUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	switch subcommand {
	case "status":
		runAdminStatus(args[1:])
	case "journal":
		runAdminJournal(args[1:])
	case "help", "-h", "--help":
		printAdminUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n\n", subcommand)
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Println(`Usage: cairnd admin <command> [options]

Admin commands for inspecting a cairn deployment.

Commands:
  status     Show configuration and journal summary
  journal    List queued and permanently failed migration jobs

Run 'cairnd admin <command> --help' for more information on a command.`)
}

func runAdminStatus(args []string) {
	fs := flag.NewFlagSet("admin status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	fs.Usage = func() {
		fmt.Println(`Usage: cairnd admin status [options]

Show the effective configuration and the migration journal summary.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	queue, err := journal.Open(cfg.Journal.Path, journal.Config{
		AttemptCeiling: cfg.Migration.AttemptCeiling,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer queue.Close()

	printStatus(os.Stdout, cfg, queue)
}

func printStatus(w io.Writer, cfg *config.Config, queue *journal.Queue) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "journal path:\t%s\n", cfg.Journal.Path)
	fmt.Fprintf(tw, "pending jobs:\t%d\n", queue.Depth())
	fmt.Fprintf(tw, "permanent failures:\t%d\n", len(queue.PermanentFailures()))
	fmt.Fprintf(tw, "tier boundaries (days):\t%d/%d/%d\n",
		cfg.Tiers.Boundaries.YoungDays, cfg.Tiers.Boundaries.MatureDays, cfg.Tiers.Boundaries.OldDays)
	fmt.Fprintf(tw, "mature codec:\t%s\n", cfg.Tiers.Compression.MatureCodec)
	fmt.Fprintf(tw, "old codec:\t%s\n", cfg.Tiers.Compression.OldCodec)
	fmt.Fprintf(tw, "gc cycle interval:\t%s\n", time.Duration(cfg.GC.CycleIntervalMs)*time.Millisecond)
	fmt.Fprintf(tw, "gc frames per cycle:\t%d\n", cfg.GC.FramesPerCycle)
	fmt.Fprintf(tw, "sweep interval:\t%s\n", time.Duration(cfg.Migration.SweepIntervalMs)*time.Millisecond)
	tw.Flush()
}

func runAdminJournal(args []string) {
	fs := flag.NewFlagSet("admin journal", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	failed := fs.Bool("failed", false, "List only permanently failed jobs")

	fs.Usage = func() {
		fmt.Println(`Usage: cairnd admin journal [options]

List migration jobs from the durable journal. Permanently failed jobs
stay in the journal until an operator resolves them.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	queue, err := journal.Open(cfg.Journal.Path, journal.Config{
		AttemptCeiling: cfg.Migration.AttemptCeiling,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer queue.Close()

	printJournal(os.Stdout, queue, *failed)
}

func printJournal(w io.Writer, queue *journal.Queue, failedOnly bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tFROM\tTO\tSTATUS\tATTEMPTS\tLAST ERROR")

	if !failedOnly {
		for _, job := range queue.Jobs() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				job.ID, job.FromTier, job.ToTier, job.Status, job.AttemptCount, job.LastError)
		}
	}
	for _, job := range queue.PermanentFailures() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			job.ID, job.FromTier, job.ToTier, job.Status, job.AttemptCount, job.LastError)
	}
	tw.Flush()
}
