package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// store is opened by the app's Before hook and shared by all commands
type store struct {
	repo          *storage.Repository
	registry      *game.Registry
	registrations *game.Registrations
}

func newApp(out io.Writer) *cli.App {
	st := &store{}

	return &cli.App{
		Name:   "gamectl",
		Usage:  "inspect and edit the game notification database",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the SQLite database",
				Value:   "./data/bot.db",
				EnvVars: []string{"DATABASE_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			repo, err := storage.NewRepository(c.String("db"))
			if err != nil {
				return err
			}
			st.repo = repo
			st.registry = game.NewRegistry(repo)
			st.registrations = game.NewRegistrations(repo, st.registry, false)
			return nil
		},
		After: func(c *cli.Context) error {
			if st.repo == nil {
				return nil
			}
			return st.repo.Close()
		},
		Commands: []*cli.Command{
			gamesCommand(st),
			registrationsCommand(st),
			configCommand(st),
		},
	}
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return cli.Exit("usage: "+usage, 2)
	}
	return nil
}

func gamesCommand(st *store) *cli.Command {
	return &cli.Command{
		Name:  "games",
		Usage: "manage the game list",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list games with their aliases",
				Action: func(c *cli.Context) error {
					entries, err := st.registry.List(c.Context)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tALIASES\tIMAGE")
					for _, e := range entries {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Game.ID, e.Game.Name, strings.Join(e.Aliases, ", "), e.Game.ImageURL)
					}
					return w.Flush()
				},
			},
			{
				Name:      "add",
				Usage:     "add a game",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Usage: "image URL shown in notifications"},
					&cli.StringFlag{Name: "aliases", Usage: "comma-separated aliases"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "games add [--image URL] [--aliases A,B] <name>"); err != nil {
						return err
					}
					name := strings.Join(c.Args().Slice(), " ")
					result, err := st.registry.Create(c.Context, name, c.String("image"), c.String("aliases"))
					if err != nil {
						return err
					}
					if result.Outcome != game.Created {
						return cli.Exit(fmt.Sprintf("could not add %q: %s", name, result.Outcome), 1)
					}
					fmt.Fprintf(c.App.Writer, "added %s (id %d)\n", name, result.GameID)
					if len(result.Skipped) > 0 {
						fmt.Fprintf(c.App.Writer, "skipped aliases already in use: %s\n", strings.Join(result.Skipped, ", "))
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a game and its registrations",
				ArgsUsage: "<name or alias>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "games delete <name or alias>"); err != nil {
						return err
					}
					name := strings.Join(c.Args().Slice(), " ")
					deleted, err := st.registry.DeleteByName(c.Context, name)
					if err != nil {
						return err
					}
					if !deleted {
						return cli.Exit(fmt.Sprintf("no game named %q", name), 1)
					}
					fmt.Fprintf(c.App.Writer, "deleted %s\n", name)
					return nil
				},
			},
			{
				Name:      "alias",
				Usage:     "add aliases to a game",
				ArgsUsage: "<name or alias> <aliases>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2, "games alias <name or alias> <A,B>"); err != nil {
						return err
					}
					entry, err := st.registry.Lookup(c.Context, c.Args().Get(0))
					if err != nil {
						return cli.Exit(fmt.Sprintf("no game named %q", c.Args().Get(0)), 1)
					}
					added, skipped, err := st.registry.AddAliases(c.Context, entry.Game.ID, strings.Join(c.Args().Tail(), " "))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "added: %s\n", strings.Join(added, ", "))
					if len(skipped) > 0 {
						fmt.Fprintf(c.App.Writer, "skipped: %s\n", strings.Join(skipped, ", "))
					}
					return nil
				},
			},
		},
	}
}

func registrationsCommand(st *store) *cli.Command {
	return &cli.Command{
		Name:    "registrations",
		Aliases: []string{"regs"},
		Usage:   "manage user registrations",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list users registered for a game, or games of --user",
				ArgsUsage: "[game]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Discord user ID"},
				},
				Action: func(c *cli.Context) error {
					if user := c.String("user"); user != "" {
						games, err := st.registrations.ListForUser(c.Context, user)
						if err != nil {
							return err
						}
						for _, g := range games {
							fmt.Fprintln(c.App.Writer, g)
						}
						return nil
					}
					if c.NArg() == 0 {
						counts, err := st.registrations.Counts(c.Context)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "GAME\tREGISTRATIONS")
						for _, gc := range counts {
							fmt.Fprintf(w, "%s\t%d\n", gc.Name, gc.Count)
						}
						return w.Flush()
					}
					users, err := st.registrations.ListForGame(c.Context, strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return err
					}
					for _, u := range users {
						fmt.Fprintln(c.App.Writer, u)
					}
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "register a user for a game",
				ArgsUsage: "<user id> <game>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2, "registrations add <user id> <game>"); err != nil {
						return err
					}
					gameName := strings.Join(c.Args().Tail(), " ")
					outcome, err := st.registrations.Register(c.Context, c.Args().First(), gameName)
					if err != nil {
						return err
					}
					if outcome != game.Registered {
						return cli.Exit(fmt.Sprintf("%s: %s", gameName, outcome), 1)
					}
					fmt.Fprintf(c.App.Writer, "registered %s for %s\n", c.Args().First(), gameName)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "unregister a user from a game",
				ArgsUsage: "<user id> <game>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2, "registrations remove <user id> <game>"); err != nil {
						return err
					}
					gameName := strings.Join(c.Args().Tail(), " ")
					outcome, err := st.registrations.Unregister(c.Context, c.Args().First(), gameName)
					if err != nil {
						return err
					}
					if outcome != game.Unregistered {
						return cli.Exit(fmt.Sprintf("%s: %s", gameName, outcome), 1)
					}
					fmt.Fprintf(c.App.Writer, "unregistered %s from %s\n", c.Args().First(), gameName)
					return nil
				},
			},
		},
	}
}

func configCommand(st *store) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "read and write runtime settings",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "config get <key>"); err != nil {
						return err
					}
					value, err := st.repo.GetConfig(c.Context, c.Args().First())
					if err != nil {
						return cli.Exit(fmt.Sprintf("%s: %v", c.Args().First(), err), 1)
					}
					fmt.Fprintln(c.App.Writer, value.String())
					return nil
				},
			},
			{
				Name:      "set",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2, "config set <key> <value>"); err != nil {
						return err
					}
					return st.repo.SetConfig(c.Context, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}
}
