package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

// NewMCQCmd runs a multiple-choice quiz and, via "mcq generate", builds
// question sets from notes.
func NewMCQCmd(root *rootOptions) *cobra.Command {
	var (
		set   string
		count int
		order string
	)
	cmd := &cobra.Command{
		Use:   "mcq",
		Short: "Take a multiple-choice quiz",
		Long: "Asks multiple-choice questions one at a time. Answer with the option letter, " +
			"its number or its text. Empty answer skips, quit stops early.",
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

			if set == "" {
				set = rt.cfg.MCQ.Path
			}
			_, err = runMCQ(ctx, rt.service(), set, rt.cfg.ClampCount(count), o, cmd.InOrStdin(), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "question set to use (defaults to mcq.path)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of questions (defaults to quiz.default_count)")
	cmd.Flags().StringVar(&order, "order", "random", "sequential or random")
	cmd.AddCommand(newMCQGenerateCmd(root))
	return cmd
}

func newMCQGenerateCmd(root *rootOptions) *cobra.Command {
	var (
		set   string
		count int
	)
	cmd := &cobra.Command{
		Use:   "generate NOTES...",
		Short: "Generate a multiple-choice set from study notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer rt.Close()
			if set == "" {
				set = rt.cfg.MCQ.Path
			}
			if count <= 0 {
				count = rt.cfg.MCQ.GenerateCount
			}
			return runMCQGenerate(cmd.Context(), rt.service(), rt.questionGenerator(), rt.logger, set, count, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "question set to write (defaults to mcq.path)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "questions per notes file (defaults to mcq.generate_count)")
	return cmd
}

func runMCQ(ctx context.Context, service *app.QuizService, source string, count int, order app.Order, in io.Reader, out io.Writer) (domain.QuizSessionResult, error) {
	session, info, err := service.StartChoiceQuiz(ctx, source, count, order)
	if err != nil {
		return domain.QuizSessionResult{}, err
	}
	if info.Truncated {
		fmt.Fprintf(out, "The set only has %d questions, using all of them.\n", info.Selected)
	}
	fmt.Fprintf(out, "Starting multiple-choice quiz with %d questions. Empty answer skips, \"quit\" stops.\n", info.Selected)

	lines := readLines(ctx, in)
	asked := -1
loop:
	for session.State() == app.StateInProgress {
		card, err := session.Current()
		if err != nil {
			break
		}
		index, total := session.Position()
		if index != asked {
			fmt.Fprintf(out, "\nQuestion %d/%d: %s\n", index+1, total, card.Question)
			for i, opt := range card.Options {
				fmt.Fprintf(out, "  %s) %s\n", domain.ChoiceLabel(i), opt)
			}
			asked = index
		}
		fmt.Fprint(out, "> ")

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
			printChoiceAttempt(out, card, attempt)
		case errors.Is(err, domain.ErrInvalidChoice):
			fmt.Fprintf(out, "Pick one of %s.\n", choiceRange(len(card.Options)))
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

func printChoiceAttempt(out io.Writer, card domain.Flashcard, a domain.QuizAttempt) {
	switch {
	case a.Skipped:
		fmt.Fprintf(out, "Skipped. The answer is: %s\n", card.Answer)
	default:
		fmt.Fprintln(out, a.Feedback)
		if a.JudgedCorrect && a.Streak > 1 {
			fmt.Fprintf(out, "Streak: %d\n", a.Streak)
		}
	}
	if card.Mnemonic != "" {
		fmt.Fprintf(out, "Explanation: %s\n", card.Mnemonic)
	}
}

func choiceRange(n int) string {
	if n == 0 {
		return "the options"
	}
	return fmt.Sprintf("A-%s or 1-%d", domain.ChoiceLabel(n-1), n)
}

func runMCQGenerate(ctx context.Context, service *app.QuizService, gen questionGenerator, logger *zap.Logger, set string, count int, paths []string, out io.Writer) error {
	perFile := make([][]domain.Question, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(generateConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read notes %s: %w", path, err)
			}
			questions, err := gen.GenerateQuestions(gctx, string(content), count)
			if err != nil {
				return fmt.Errorf("generate from %s: %w", path, err)
			}
			logger.Info("questions generated", zap.String("notes", path), zap.Int("questions", len(questions)))
			perFile[i] = questions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var questions []domain.Question
	for i, fileQuestions := range perFile {
		fmt.Fprintf(out, "%s: %d questions\n", paths[i], len(fileQuestions))
		questions = append(questions, fileQuestions...)
	}
	if len(questions) == 0 {
		fmt.Fprintln(out, "No questions could be built from the notes.")
		return nil
	}

	saved, err := service.SaveQuestions(ctx, set, questions)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %d questions to %s\n", len(saved), set)
	return nil
}
