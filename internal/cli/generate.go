package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

const generateConcurrency = 4

// NewGenerateCmd creates flashcards from notes files and merges them into a deck.
func NewGenerateCmd(root *rootOptions) *cobra.Command {
	var deck string
	cmd := &cobra.Command{
		Use:   "generate NOTES...",
		Short: "Generate flashcards from study notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer rt.Close()
			if deck == "" {
				deck = rt.cfg.Decks.Path
			}
			return runGenerate(cmd.Context(), rt.service(), rt.generator(), rt.logger, deck, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck to merge into (defaults to decks.path)")
	return cmd
}

func runGenerate(ctx context.Context, service *app.QuizService, gen cardGenerator, logger *zap.Logger, deck string, paths []string, out io.Writer) error {
	perFile := make([][]domain.Flashcard, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(generateConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read notes %s: %w", path, err)
			}
			cards, err := gen.Generate(gctx, string(content))
			if err != nil {
				return fmt.Errorf("generate from %s: %w", path, err)
			}
			logger.Info("flashcards generated", zap.String("notes", path), zap.Int("cards", len(cards)))
			perFile[i] = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var cards []domain.Flashcard
	for i, fileCards := range perFile {
		fmt.Fprintf(out, "%s: %d flashcards\n", paths[i], len(fileCards))
		cards = append(cards, fileCards...)
	}
	if len(cards) == 0 {
		fmt.Fprintln(out, "No flashcards found in the notes.")
		return nil
	}

	report, err := service.MergeCards(ctx, deck, cards)
	if err != nil {
		return err
	}
	for _, reason := range report.Skipped {
		fmt.Fprintf(out, "Skipped: %s\n", reason)
	}
	fmt.Fprintf(out, "Added %d flashcards to %s\n", report.Added, deck)
	return nil
}
