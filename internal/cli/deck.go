package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memory-palace/internal/domain"
)

// NewDeckCmd groups deck management commands.
func NewDeckCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Manage flashcard decks",
	}
	cmd.AddCommand(newDeckAddCmd(root), newDeckListCmd(root))
	return cmd
}

func newDeckAddCmd(root *rootOptions) *cobra.Command {
	var (
		deck string
		card domain.Flashcard
		diff string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a flashcard to a deck",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer rt.Close()
			if deck == "" {
				deck = rt.cfg.Decks.Path
			}
			card.Difficulty = domain.Difficulty(diff)

			added, err := rt.service().AddCard(cmd.Context(), deck, card)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", added.ID, deck)
			return nil
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck to add to (defaults to decks.path)")
	cmd.Flags().StringVar(&card.ID, "id", "", "flashcard id (generated when empty)")
	cmd.Flags().StringVarP(&card.Question, "question", "q", "", "question text")
	cmd.Flags().StringVarP(&card.Answer, "answer", "a", "", "expected answer")
	cmd.Flags().StringVarP(&card.Mnemonic, "mnemonic", "m", "", "memory hook")
	cmd.Flags().StringVarP(&card.Topic, "topic", "t", "", "topic label")
	cmd.Flags().StringVar(&diff, "difficulty", "", "easy, medium or hard")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newDeckListCmd(root *rootOptions) *cobra.Command {
	var deck string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the flashcards in a deck",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer rt.Close()
			if deck == "" {
				deck = rt.cfg.Decks.Path
			}

			cards, err := rt.service().LoadDeck(cmd.Context(), deck)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tQUESTION")
			for _, c := range cards {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Topic, c.Question)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cards\n", len(cards))
			return nil
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck to list (defaults to decks.path)")
	return cmd
}
