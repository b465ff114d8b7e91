package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loglens/loglens/internal/engine"
	"github.com/loglens/loglens/internal/presentation/formatter"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [project]",
	Short: "List projects, or the sessions of one project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	e := engine.New(cfg)
	if err := e.Rescan(); err != nil {
		return fmt.Errorf("scan %s: %w", cfg.Root, err)
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	if len(args) == 0 {
		projects := e.ListProjects()
		if !isTTY {
			for _, p := range projects {
				fmt.Printf("%s\t%d\t%s\n", p.Name, p.SessionCount, p.LastActivity.Format("2006-01-02 15:04:05"))
			}
			return nil
		}
		tbl := formatter.NewTable(
			formatter.Column{Header: "Project"},
			formatter.Column{Header: "Sessions", Align: formatter.AlignRight},
			formatter.Column{Header: "Last Activity"},
		)
		for _, p := range projects {
			tbl.AddRow(p.Name, strconv.Itoa(p.SessionCount), p.LastActivity.Format("2006-01-02 15:04:05"))
		}
		return tbl.Render(os.Stdout)
	}

	sessions, err := e.ListSessions(args[0])
	if err != nil {
		return err
	}
	if !isTTY {
		for _, s := range sessions {
			fmt.Printf("%s\t%d\t%s\t%s\n", s.ID, s.EntryCount, s.LastActivity.Format("2006-01-02 15:04:05"), s.Summary)
		}
		return nil
	}
	tbl := formatter.NewTable(
		formatter.Column{Header: "Session"},
		formatter.Column{Header: "Title"},
		formatter.Column{Header: "Entries", Align: formatter.AlignRight},
		formatter.Column{Header: "Last Activity"},
	)
	for _, s := range sessions {
		tbl.AddRow(s.ID, s.Summary, strconv.Itoa(s.EntryCount), s.LastActivity.Format("2006-01-02 15:04:05"))
	}
	return tbl.Render(os.Stdout)
}
