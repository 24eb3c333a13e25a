package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

func (cli *commandLine) attemptsCmd() *cobra.Command {
	filter := new(attempt.QueryFilter)
	var ordering string

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Clean()
			return cli.listAttempts(filter, core.ParseOrdering(ordering))
		},
	}
	cmd.Flags().StringVar(&filter.ExamID, "exam", "", "only attempts of this exam")
	cmd.Flags().StringVar(&filter.CandidateID, "candidate", "", "only attempts of this candidate")
	cmd.Flags().StringSliceVar(&filter.Statuses, "status", nil, "only attempts in these statuses")
	cmd.Flags().StringVar(&ordering, "ordering", "", "comma separated fields, prefixed with - for descending order")
	return cmd
}

func (cli *commandLine) listAttempts(filter *attempt.QueryFilter, orderings []core.DBOrdering) error {
	attempts, err := cli.repo.QueryAttempts(context.Background(), filter, orderings)
	if err != nil {
		return err
	}
	if attempts == nil {
		attempts = []attempt.Attempt{}
	}

	rows := make([][]interface{}, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, []interface{}{
			a.ID, a.ExamID, a.CandidateID, a.Status,
			fmtCount(a.ViolationCount, a.MaxViolations), a.CreatedAt.Format(time.RFC3339),
		})
	}
	return cli.render(attempts, []interface{}{"ID", "EXAM", "CANDIDATE", "STATUS", "VIOLATIONS", "CREATED"}, rows)
}

func (cli *commandLine) violationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "violations ATTEMPT_ID",
		Short: "Print the violation ledger of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.listViolations(args[0])
		},
	}
}

func (cli *commandLine) listViolations(id string) error {
	ctx := context.Background()
	if _, err := cli.repo.GetAttempt(ctx, id); err != nil {
		return err
	}
	violations, err := cli.repo.QueryViolations(ctx, id)
	if err != nil {
		return err
	}
	if violations == nil {
		violations = []attempt.Violation{}
	}

	rows := make([][]interface{}, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, []interface{}{v.Seq, v.Kind, v.OccurredAt.Format(time.RFC3339), v.Description})
	}
	return cli.render(violations, []interface{}{"SEQ", "KIND", "AT", "DESCRIPTION"}, rows)
}

func fmtCount(count, max int) string {
	return fmt.Sprintf("%d/%d", count, max)
}
