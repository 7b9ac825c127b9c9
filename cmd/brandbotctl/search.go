package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/brandbot/internal/app/inventory"
	"github.com/PabloGalante/brandbot/internal/domain"
)

var (
	searchProfile string
	searchLang    string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a profile's product memory",
	Long: `Runs the inventory lookup used by the chat resolver against a saved
profile, including category fallback and accessory exclusions.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchProfile, "profile", "p", "", "profile JSON file")
	searchCmd.Flags().StringVar(&searchLang, "lang", "es", "query language (es or en)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", inventory.DefaultLimit, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchProfile == "" {
		return errors.New("--profile is required")
	}
	profile, err := readProfile(searchProfile)
	if err != nil {
		return err
	}

	ix := inventory.New(profile.Products,
		inventory.WithCategories(profile.NavigationTree),
		inventory.WithLanguage(domain.ParseLanguage(searchLang)),
		inventory.WithLimit(searchLimit),
	)
	results := ix.Search(args[0])

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	for i, p := range results {
		fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, p.Name, p.Kind)
		if p.Price != "" {
			fmt.Fprintf(out, "      %s\n", p.Price)
		}
		if p.BuyURL != "" {
			fmt.Fprintf(out, "      %s\n", p.BuyURL)
		}
	}
	return nil
}
