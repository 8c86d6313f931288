package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database"
	"github.com/openils/importer/internal/database/tasklog"
	vocabdb "github.com/openils/importer/internal/database/vocabulary"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/importer"
	"github.com/openils/importer/internal/tasks"
	"github.com/openils/importer/internal/vocabulary"
)

// ImportFileCommand runs one source file through the import pipeline
// without going through the HTTP server or the task queue.
type ImportFileCommand struct {
	FilePath     string
	Provider     string
	Mode         string
	DatabasePath string
	Verbose      bool

	mode entities.ImportMode
}

func NewImportFileCommand() *ImportFileCommand {
	return &ImportFileCommand{}
}

func (cmd *ImportFileCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import-file", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the MARCXML or JSON source file (required)")
	fs.StringVar(&cmd.Provider, "provider", "", "Provider the file originates from, e.g. springer (required)")
	fs.StringVar(&cmd.Mode, "mode", "import", "One of: import, delete, preview-import, preview-delete")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalogue database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print a line per record instead of only the summary")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import-file -file <path> -provider <name> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run one source file through the record import pipeline. The file is\n")
		fmt.Fprintf(os.Stderr, "processed record by record, exactly as an uploaded file would be, and\n")
		fmt.Fprintf(os.Stderr, "the outcome of every record is kept in the task log.\n\n")
		fmt.Fprintf(os.Stderr, "Preview modes report what would happen without writing anything.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Import a Springer delivery:\n")
		fmt.Fprintf(os.Stderr, "  %s import-file -file springer-2024-06.xml -provider springer\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # See what a deletion file would do, without deleting:\n")
		fmt.Fprintf(os.Stderr, "  %s import-file -file removals.xml -provider ebl -mode preview-delete -verbose\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	if cmd.Provider == "" {
		return fmt.Errorf("required flag -provider not provided")
	}

	mode := entities.ImportMode(strings.ReplaceAll(strings.ToUpper(cmd.Mode), "-", "_"))
	switch mode {
	case entities.ModeImport, entities.ModeDelete, entities.ModePreviewImport, entities.ModePreviewDelete:
		cmd.mode = mode
	default:
		return fmt.Errorf("unknown mode %q", cmd.Mode)
	}

	return nil
}

func (cmd *ImportFileCommand) Run() error {
	fmt.Println("Record Import")
	fmt.Println("=============")

	if cmd.mode.IsPreview() {
		fmt.Println("PREVIEW MODE - No changes will be made")
		fmt.Println()
	}

	if _, err := os.Stat(cmd.FilePath); os.IsNotExist(err) {
		return fmt.Errorf("source file not found: %s", cmd.FilePath)
	}

	fmt.Printf("File: %s\n", cmd.FilePath)
	fmt.Printf("Provider: %s, mode: %s\n", cmd.Provider, cmd.mode)

	cfg := config.NewConfig()
	if _, ok := cfg.Importer.Providers[cmd.Provider]; !ok {
		return fmt.Errorf("unknown provider %q", cmd.Provider)
	}

	absDBPath, err := filepath.Abs(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	fmt.Printf("Database: %s\n", absDBPath)

	db, err := database.NewDatabase(absDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	logs := tasklog.NewRepository(db.DB)
	validator := vocabulary.NewValidator(vocabulary.DefaultFetchers(vocabdb.NewRepository(db.DB)))
	imp := importer.New(db.DB, cfg.Importer, validator)

	task := &entities.ImportTask{
		Agent:            entities.AgentCLI,
		Provider:         cmd.Provider,
		SourceType:       strings.TrimPrefix(filepath.Ext(cmd.FilePath), "."),
		Mode:             cmd.mode,
		Status:           entities.TaskStatusRunning,
		OriginalFilename: filepath.Base(cmd.FilePath),
		SourcePath:       cmd.FilePath,
	}
	if err := logs.CreateTask(task); err != nil {
		return fmt.Errorf("failed to create task log: %w", err)
	}

	// Same processor as the queue workers, invoked in-process.
	process := tasks.ImportFileProcessor(logs, imp, cfg.Importer)
	if err := process(context.Background(), tasks.ProcessImportFileTask{
		TaskID:   task.ID,
		FilePath: cmd.FilePath,
		Provider: cmd.Provider,
		Mode:     cmd.mode,
	}); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	finished, err := logs.GetTask(task.ID)
	if err != nil {
		return fmt.Errorf("failed to reload task log: %w", err)
	}
	records, err := logs.Records(task.ID)
	if err != nil {
		return fmt.Errorf("failed to load record reports: %w", err)
	}

	if cmd.Verbose {
		fmt.Println("\n=== Records ===")
		for _, rec := range records {
			action := "?"
			if rec.Action != nil {
				action = string(*rec.Action)
			}
			line := fmt.Sprintf("%4d. [%s]", rec.EntryIndex+1, action)
			if rec.EntryRecID != "" {
				line += " " + rec.EntryRecID
			}
			if rec.OutputPID != "" {
				line += " -> " + rec.OutputPID
			}
			if rec.Error != "" {
				line += " (" + rec.Error + ")"
			}
			fmt.Println(line)
		}
	}

	counts := map[entities.RecordAction]int{}
	for _, rec := range records {
		if rec.Action != nil {
			counts[*rec.Action]++
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Task %d finished with status %s\n", finished.ID, finished.Status)
	if finished.EntriesCount != nil {
		fmt.Printf("Records: %d\n", *finished.EntriesCount)
	}
	for _, action := range []entities.RecordAction{
		entities.ActionCreate, entities.ActionUpdate, entities.ActionDelete,
		entities.ActionNone, entities.ActionError,
	} {
		if counts[action] > 0 {
			fmt.Printf("  %s: %d\n", action, counts[action])
		}
	}
	if finished.Message != "" {
		fmt.Printf("Message: %s\n", finished.Message)
	}

	if finished.Status == entities.TaskStatusFailed {
		return fmt.Errorf("task failed: %s", finished.Message)
	}

	fmt.Println("\nImport complete!")
	return nil
}
