package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/brandbot/internal/app/grounding"
	"github.com/PabloGalante/brandbot/internal/domain"
)

var (
	askProfile string
	askLang    string
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask a trained profile one chat question",
	Long: `Resolves a single chat turn against a saved profile and prints the
reply with its product cards.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askProfile, "profile", "p", "", "profile JSON file")
	askCmd.Flags().StringVar(&askLang, "lang", "es", "reply language (es or en)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askProfile == "" {
		return errors.New("--profile is required")
	}
	profile, err := readProfile(askProfile)
	if err != nil {
		return err
	}

	gen, err := newGenerator(cmd.Context())
	if err != nil {
		return err
	}

	strategy := grounding.NewStrategy(gen, grounding.StrategyConfig{
		Name:        appConfig.Chat.Strategy,
		Model:       appConfig.LLM.ChatModel,
		Search:      appConfig.Chat.SearchAugmented,
		SparseBelow: appConfig.Chat.SparseBelow,
	})

	reply := grounding.NewResolver(strategy).Respond(cmd.Context(), grounding.Request{
		Message: args[0],
		Profile: profile,
		Lang:    domain.ParseLanguage(askLang),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Text)
	for _, c := range reply.ProductCards {
		fmt.Fprintf(out, "  * %s", c.Name)
		if c.Price != "" {
			fmt.Fprintf(out, " - %s", c.Price)
		}
		if c.BuyURL != "" {
			fmt.Fprintf(out, " <%s>", c.BuyURL)
		}
		fmt.Fprintln(out)
	}
	return nil
}
