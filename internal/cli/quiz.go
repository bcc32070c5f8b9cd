package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

// NewQuizCmd runs an interactive quiz on stdin/stdout.
func NewQuizCmd(root *rootOptions) *cobra.Command {
	var (
		deck  string
		count int
		order string
	)
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Quiz yourself on a deck",
		Long: "Asks flashcard questions one at a time. Press Enter on an empty line to skip, " +
			"type quit or press Ctrl+C to stop early; answered questions are still recorded.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			o, err := app.ParseOrder(order)
			if err != nil {
				return err
			}
			rt, err := newRuntime(ctx, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			if deck == "" {
				deck = rt.cfg.Decks.Path
			}
			if order == "" {
				o, _ = app.ParseOrder(rt.cfg.Quiz.Order)
			}
			_, err = runQuiz(ctx, rt.service(), deck, rt.cfg.ClampCount(count), o, cmd.InOrStdin(), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck to quiz on (defaults to decks.path)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of questions (defaults to quiz.default_count)")
	cmd.Flags().StringVar(&order, "order", "", "sequential or random")
	return cmd
}

func runQuiz(ctx context.Context, service *app.QuizService, source string, count int, order app.Order, in io.Reader, out io.Writer) (domain.QuizSessionResult, error) {
	session, info, err := service.StartQuiz(ctx, source, count, order)
	if err != nil {
		return domain.QuizSessionResult{}, err
	}
	if info.Truncated {
		fmt.Fprintf(out, "The deck only has %d cards, quizzing on all of them.\n", info.Selected)
	}
	fmt.Fprintf(out, "Starting quiz with %d questions. Empty answer skips, \"quit\" stops.\n", info.Selected)

	lines := readLines(ctx, in)

loop:
	for session.State() == app.StateInProgress {
		card, err := session.Current()
		if err != nil {
			break
		}
		index, total := session.Position()
		fmt.Fprintf(out, "\nQuestion %d/%d: %s\n> ", index+1, total, card.Question)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nQuiz interrupted.")
			break loop
		case l, ok := <-lines:
			if !ok {
				break loop
			}
			line = l
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "quit", "exit", ":q":
			break loop
		}

		attempt, err := session.Submit(ctx, line)
		switch {
		case err == nil:
			printAttempt(out, card, attempt)
		case errors.Is(err, domain.ErrEvaluationTimeout):
			fmt.Fprintln(out, "The evaluator took too long. Answer again or press Enter to skip.")
		case errors.Is(err, domain.ErrEvaluationFormat), errors.Is(err, domain.ErrEvaluatorUnavailable):
			fmt.Fprintf(out, "Could not evaluate that answer (%v). Answer again or press Enter to skip.\n", err)
		default:
			if ctx.Err() != nil {
				fmt.Fprintln(out, "\nQuiz interrupted.")
				break loop
			}
			return domain.QuizSessionResult{}, err
		}
	}

	res, recErr := service.Finish(context.WithoutCancel(ctx), session)
	printResult(out, res)
	if recErr != nil {
		fmt.Fprintf(out, "Warning: progress was not saved: %v\n", recErr)
	}
	return res, nil
}

// readLines scans in on its own goroutine so a blocked read never holds up
// cancellation. The channel closes on EOF.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func printAttempt(out io.Writer, card domain.Flashcard, a domain.QuizAttempt) {
	switch {
	case a.Skipped:
		fmt.Fprintf(out, "Skipped. The answer is: %s\n", card.Answer)
	case a.JudgedCorrect:
		fmt.Fprintf(out, "Correct! %s\n", a.Feedback)
		if a.Streak > 1 {
			fmt.Fprintf(out, "Streak: %d\n", a.Streak)
		}
		return
	default:
		fmt.Fprintf(out, "Not quite. %s\n", a.Feedback)
		fmt.Fprintf(out, "Answer: %s\n", card.Answer)
	}
	if card.Mnemonic != "" {
		fmt.Fprintf(out, "Memory hook: %s\n", card.Mnemonic)
	}
}

func printResult(out io.Writer, res domain.QuizSessionResult) {
	fmt.Fprintln(out, "\nQuiz complete!")
	if res.Aborted {
		fmt.Fprintln(out, "(stopped early)")
	}
	fmt.Fprintf(out, "Score: %d/%d (%.0f%%)\n", res.Correct, res.Total, res.Accuracy*100)
	fmt.Fprintf(out, "Best streak: %d\n", res.BestStreak)
	if res.Total == 0 {
		return
	}
	switch pct := res.Accuracy * 100; {
	case pct >= 80:
		fmt.Fprintln(out, "Excellent work! Your memory palace is getting stronger.")
	case pct >= 60:
		fmt.Fprintln(out, "Good job! A few more rounds and these will stick.")
	default:
		fmt.Fprintln(out, "Keep practicing. Review the memory hooks and try again.")
	}
}
