package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"magnate/internal/cli"
	"magnate/internal/config"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLIFromEnv()
	client := cli.NewClient(cfg.APIBaseURL, cfg.TriggerSecret)

	root := &cobra.Command{
		Use:           "magctl",
		Short:         "Operate the magnate turn engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(turnCmd(client))
	root.AddCommand(jobsCmd(client))
	root.AddCommand(pricesCmd(client))
	root.AddCommand(corpsCmd(client))
	root.AddCommand(sectorConfigCmd(client))

	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func render(title string, out map[string]any) error {
	headerColor.Println(title)
	enc, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func turnCmd(client *cli.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Trigger turn jobs",
	}

	type trigger struct {
		use   string
		short string
		call  func(context.Context) (map[string]any, error)
	}
	triggers := []trigger{
		{"run", "Run a full turn: actions, market, salaries", client.RunTurn},
		{"actions", "Grant action points to every player", client.TriggerActions},
		{"market", "Settle market revenue for every corporation", client.TriggerMarket},
		{"salaries", "Pay CEO salaries", client.TriggerSalaries},
		{"prices", "Record a price history snapshot", client.TriggerPrices},
		{"proposals", "Resolve expired proposals", client.TriggerProposals},
	}
	for _, tr := range triggers {
		cmd.AddCommand(&cobra.Command{
			Use:   tr.use,
			Short: tr.short,
			RunE: func(_ *cobra.Command, _ []string) error {
				ctx, cancel := cmdContext()
				defer cancel()
				out, err := tr.call(ctx)
				if err != nil {
					return err
				}
				return render("turn "+tr.use, out)
			},
		})
	}
	return cmd
}

func jobsCmd(client *cli.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect or flip the jobs kill switch",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether turn jobs are enabled",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.JobsStatus(ctx)
			if err != nil {
				return err
			}
			return render("jobs", out)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable turn jobs",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.SetJobs(ctx, true)
			if err != nil {
				return err
			}
			return render("jobs", out)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable turn jobs",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.SetJobs(ctx, false)
			if err != nil {
				return err
			}
			return render("jobs", out)
		},
	})
	return cmd
}

func pricesCmd(client *cli.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Show the latest recorded prices",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.MarketPrices(ctx)
			if err != nil {
				return err
			}
			return render("market prices", out)
		},
	}
}

func corpsCmd(client *cli.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corps",
		Short: "Inspect corporations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every corporation",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.Corporations(ctx)
			if err != nil {
				return err
			}
			return render("corporations", out)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one corporation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid corporation id %q", args[0])
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.Corporation(ctx, id)
			if err != nil {
				return err
			}
			return render("corporation", out)
		},
	})
	return cmd
}

func sectorConfigCmd(client *cli.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sector-config",
		Short: "Read or replace the sector configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the active sector configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.SectorConfig(ctx)
			if err != nil {
				return err
			}
			return render("sector config", out)
		},
	})

	var file string
	set := &cobra.Command{
		Use:   "set",
		Short: "Upload a new sector configuration version",
		RunE: func(_ *cobra.Command, _ []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := client.SaveSectorConfig(ctx, body)
			if err != nil {
				return err
			}
			return render("sector config", out)
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "YAML config file to upload")
	_ = set.MarkFlagRequired("file")
	cmd.AddCommand(set)

	return cmd
}
