package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loglens/loglens/internal/engine"
	"github.com/loglens/loglens/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <project> <session>",
	Short: "Render a session transcript as markdown",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "",
		"Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	project, session := args[0], args[1]

	e := engine.New(cfg)
	if err := e.Rescan(); err != nil {
		return fmt.Errorf("scan %s: %w", cfg.Root, err)
	}

	entries, err := e.GetEntries(project, session)
	if err != nil {
		return err
	}

	title := ""
	if sessions, err := e.ListSessions(project); err == nil {
		for _, s := range sessions {
			if s.ID == session {
				title = s.Summary
				break
			}
		}
	}

	doc := export.Markdown(project, session, title, entries)
	if exportOut == "" {
		fmt.Print(doc)
		return nil
	}
	return os.WriteFile(expandPath(exportOut), []byte(doc), 0644)
}
