package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
)

func newListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved interviews, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			records, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved interviews.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tDURATION\tSCORE\tQUESTIONS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\n",
					r.ID, r.Date.Local().Format("2006-01-02 15:04"), formatDuration(r.Duration), r.OverallScore, r.QuestionCount)
			}
			return w.Flush()
		},
	}
}

func newShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the evaluation of one interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			record, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err, args[0])
			}
			printSummary(cmd.OutOrStdout(), record)
			return nil
		},
	}
}

func newExportCommand(e *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write an interview as indented JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := e.get(cmd, args[0])
			if err != nil {
				return err
			}
			return writeTo(cmd, output, func(w io.Writer) error {
				return store.ExportJSON(w, record)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newReportCommand(e *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Render a printable HTML report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := e.get(cmd, args[0])
			if err != nil {
				return err
			}
			return writeTo(cmd, output, func(w io.Writer) error {
				return store.RenderReport(w, record)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete one saved interview",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return describe(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newClearCommand(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved interview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all saved interviews? [y/N] ") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			s, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (e *env) get(cmd *cobra.Command, id string) (interview.SavedInterview, error) {
	s, err := e.store(cmd.Context())
	if err != nil {
		return interview.SavedInterview{}, err
	}
	record, err := s.Get(cmd.Context(), id)
	if err != nil {
		return interview.SavedInterview{}, describe(err, id)
	}
	return record, nil
}

func describe(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("interview %q not found", id)
	case errors.Is(err, store.ErrInvalidID):
		return fmt.Errorf("invalid interview id %q", id)
	default:
		return err
	}
}

func writeTo(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printSummary(w io.Writer, r interview.SavedInterview) {
	eval := r.Evaluation
	fmt.Fprintf(w, "Interview %s\n", r.ID)
	fmt.Fprintf(w, "Date:      %s\n", r.Date.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Duration:  %s\n", formatDuration(r.Duration))
	fmt.Fprintf(w, "Questions: %d\n", r.QuestionCount)
	fmt.Fprintf(w, "Overall:   %.1f / 10\n\n", r.OverallScore)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Technical depth\t%.1f\n", eval.TechnicalDepth)
	fmt.Fprintf(tw, "  Clarity\t%.1f\n", eval.Clarity)
	fmt.Fprintf(tw, "  Originality\t%.1f\n", eval.Originality)
	fmt.Fprintf(tw, "  Understanding\t%.1f\n", eval.Understanding)
	fmt.Fprintf(tw, "  Problem solving\t%.1f\n", eval.ProblemSolving)
	fmt.Fprintf(tw, "  Communication\t%.1f\n", eval.Communication)
	tw.Flush()

	if eval.Feedback != "" {
		fmt.Fprintf(w, "\n%s\n", eval.Feedback)
	}
	printList(w, "Strengths", eval.Strengths)
	printList(w, "Areas for improvement", eval.AreasForImprovement)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
