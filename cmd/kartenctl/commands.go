package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/feedback"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) rankingsCommand() *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Show the cities with the most reports",
		Long: `Show the cities with the most reports.

Examples:
  # Top 5 of the last week
  kartenctl rankings --days 7 --limit 5

  # Every city, all time
  kartenctl rankings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.rankings.CityRanking(cmd.Context(), days, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "No reports yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tCITY\tZIP\tREPORTS\tAVG SCORE")
			for i, s := range stats {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f\n", i+1, s.Name, s.ZipCode, s.Count, s.AvgScore)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "only count the last N days (0 = all time)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of cities (0 = all)")
	return cmd
}

func (c *cli) phoneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "phone <number>",
		Short: "Show the activity profile of a phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := c.rankings.PhoneProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
}

func printProfile(out io.Writer, p *ranking.PhoneProfile) {
	tier := ranking.TierFor(p.TotalCount)
	level := ranking.ScoreLevel(p.AvgScore)

	levelColor := color.New(color.FgGreen).SprintFunc()
	switch level {
	case "high":
		levelColor = color.New(color.FgRed, color.Bold).SprintFunc()
	case "medium":
		levelColor = color.New(color.FgYellow).SprintFunc()
	}

	fmt.Fprintf(out, "%s\n", color.New(color.Bold).Sprint(p.PhoneNumber))
	fmt.Fprintf(out, "  Tier:      %s\n", tier.Title)
	fmt.Fprintf(out, "  Reports:   %d\n", p.TotalCount)
	fmt.Fprintf(out, "  Avg score: %s\n", levelColor(fmt.Sprintf("%.1f (%s)", p.AvgScore, level)))
	if len(p.CompanyNames) > 0 {
		fmt.Fprintf(out, "  Companies:\n")
		for _, name := range p.CompanyNames {
			fmt.Fprintf(out, "    - %s\n", name)
		}
	}
	fmt.Fprintf(out, "  Cities:\n")
	for _, city := range p.Cities {
		fmt.Fprintf(out, "    %-30s %3d  %.1f\n", city.Name, city.Count, city.AvgScore)
	}
}

func (c *cli) plzCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plz <zip>",
		Short: "Resolve a postal code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city, err := c.postal.City(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			source := "custom"
			if c.postal.IsCore(args[0]) {
				source = "core"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", args[0], city, source)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <zip> <city>",
		Short: "Add a user postal code mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			zip, city := args[0], args[1]
			if c.postal.IsCore(zip) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is a built-in code, not changed\n", zip)
				return nil
			}
			if err := c.postal.AddCustom(cmd.Context(), zip, city); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n", zip, city)
			return nil
		},
	})

	var core bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List user postal code mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if core {
				for _, zip := range c.postal.CoreCodes() {
					city, err := c.postal.City(cmd.Context(), zip)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s %s\n", zip, city)
				}
				return nil
			}

			codes, err := c.postal.ListCustom(cmd.Context())
			if err != nil {
				return err
			}
			for _, code := range codes {
				fmt.Fprintf(out, "%s %s\n", code.ZipCode, code.CityName)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&core, "core", false, "list the built-in table instead")
	cmd.AddCommand(list)

	return cmd
}

func (c *cli) feedbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Inspect feedback messages",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feedback, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := c.feedback.ListSummaries(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No feedback")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tFROM\tMESSAGE")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), sender(s), s.Preview)
			}
			return w.Flush()
		},
	})

	return cmd
}

func sender(s feedback.Summary) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Email != "":
		return s.Email
	default:
		return "anonym"
	}
}

func (c *cli) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all data as a JSON snapshot (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.repo.Export(cmd.Context())
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode snapshot: %w", err)
			}

			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d reports, %d feedback to %s\n",
				len(snap.Reports), len(snap.Feedback), args[0])
			return nil
		},
	}
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON snapshot into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			result, err := c.repo.Import(cmd.Context(), database.ParseSnapshot(data), c.clock.Now(), c.postal.IsCore)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d reports, %d feedback, %d postal codes (%d skipped)\n",
				result.Reports, result.Feedback, result.PostalCodes, result.Skipped)
			return nil
		},
	}
}

func (c *cli) cleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete reports and feedback older than retention_days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.privacy.Cleanup(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Disabled {
				fmt.Fprintln(out, "Retention is disabled (retention_days = 0)")
				return nil
			}
			fmt.Fprintf(out, "Deleted %d reports and %d feedback older than %s\n",
				result.ReportsDeleted, result.FeedbackDeleted, result.Cutoff.Format("2006-01-02"))
			return nil
		},
	}
}
