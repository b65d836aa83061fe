package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/transitarchive/gtfs"
	"github.com/transitarchive/gtfs/sqlite"
	"github.com/transitarchive/gtfs/warnings"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "gtfs",
		Usage: "import and export GTFS static feeds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Value: "gtfs.db",
				Usage: "path to the SQLite database holding the feeds",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "create an empty feed",
				ArgsUsage: "name",
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					if ctx.Args().Len() == 0 {
						return fmt.Errorf("a feed name was not provided")
					}
					feed, err := client.CreateFeed(ctx.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("Created feed %d\n", feed.ID)
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "list feeds",
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					feeds, err := client.ListFeeds()
					if err != nil {
						return err
					}
					idColor := color.New(color.FgCyan)
					for _, feed := range feeds {
						fmt.Printf("%s  %s  created %s\n",
							idColor.Sprint(feed.ID), feed.Name,
							feed.CreatedAt.Format("2006-01-02 15:04:05"))
					}
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "import a GTFS archive into a feed",
				ArgsUsage: "feed-id path",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "suppress import warnings",
					},
				},
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					feedID, err := feedIDArg(ctx)
					if err != nil {
						return err
					}
					if ctx.Args().Len() < 2 {
						return fmt.Errorf("a path to the GTFS archive was not provided")
					}
					opts := gtfs.ImportOptions{}
					if !ctx.Bool("quiet") {
						warningColor := color.New(color.FgYellow)
						opts.Warnings = func(w warnings.Warning) {
							warningColor.Fprintf(os.Stderr, "%s: %s\n", w.File(), w.Error())
						}
					}
					return client.Import(ctx.Context, feedID, ctx.Args().Get(1), opts)
				}),
			},
			{
				Name:      "export",
				Usage:     "export a feed as a GTFS ZIP archive",
				ArgsUsage: "feed-id path",
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					feedID, err := feedIDArg(ctx)
					if err != nil {
						return err
					}
					if ctx.Args().Len() < 2 {
						return fmt.Errorf("an output path was not provided")
					}
					return client.ExportFile(ctx.Context, feedID, ctx.Args().Get(1))
				}),
			},
			{
				Name:      "rebuild-geometries",
				Usage:     "recompute the derived geometries of a feed",
				ArgsUsage: "feed-id",
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					feedID, err := feedIDArg(ctx)
					if err != nil {
						return err
					}
					return client.RebuildGeometries(ctx.Context, feedID)
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a feed and everything it owns",
				ArgsUsage: "feed-id",
				Action: withClient(func(ctx *cli.Context, client *gtfs.Client) error {
					feedID, err := feedIDArg(ctx)
					if err != nil {
						return err
					}
					return client.DeleteFeed(feedID)
				}),
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func withClient(action func(*cli.Context, *gtfs.Client) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		storage, err := sqlite.Open(ctx.String("db"))
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", ctx.String("db"), err)
		}
		defer storage.Close()
		return action(ctx, gtfs.NewClient(storage))
	}
}

func feedIDArg(ctx *cli.Context) (int64, error) {
	if ctx.Args().Len() == 0 {
		return 0, fmt.Errorf("a feed ID was not provided")
	}
	feedID, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid feed ID %q", ctx.Args().First())
	}
	return feedID, nil
}
