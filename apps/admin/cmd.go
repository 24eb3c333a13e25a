package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	db     *sqlx.DB
	repo   attempt.Repository
	out    io.Writer
}

// root builds a fresh command tree so flags never leak between runs.
func (cli *commandLine) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "ExamGuard administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(cli.migrateCmd(), cli.attemptsCmd(), cli.violationsCmd(), cli.tokenCmd())
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.root()
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	return root.Execute()
}

// render prints rows as an aligned table on a terminal and v as JSON otherwise.
func (cli *commandLine) render(v interface{}, header []interface{}, rows [][]interface{}) error {
	if !isTerminalFunc() {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	printRow := func(cols []interface{}) {
		for i, col := range cols {
			if i > 0 {
				_, _ = fmt.Fprint(w, "\t")
			}
			_, _ = fmt.Fprint(w, col)
		}
		_, _ = fmt.Fprintln(w)
	}
	printRow(header)
	for _, row := range rows {
		printRow(row)
	}
	return w.Flush()
}
