// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, connectCommand, disconnectCommand,
		connectionsCommand, searchCommand, matchCommand,
		importCommand, exportCommand, playlistsCommand, jobsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Acting user ID",
		Required: true,
	}
}

// setupCommand initializes the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playlist sync HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// connectCommand links a music service account.
func connectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Connect a music service via OAuth",
		ArgsUsage: "<spotify|appleMusic|amazonMusic>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "provider"},
		},
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:  "user-token",
				Usage: "Music user token (Apple Music only, no OAuth flow)",
			},
			&cli.StringFlag{
				Name:  "callback-addr",
				Usage: "Local address for the OAuth callback server, must match the configured redirect URI",
				Value: "127.0.0.1:8080",
			},
		},
		Action: r.Connect,
	}
}

// disconnectCommand unlinks a music service account.
func disconnectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "disconnect",
		Usage:     "Disconnect a music service",
		ArgsUsage: "<spotify|appleMusic|amazonMusic>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "provider"},
		},
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.BoolFlag{
				Name:  "forget",
				Usage: "Remove the stored connection entirely instead of clearing its tokens",
			},
		},
		Action: r.Disconnect,
	}
}

// connectionsCommand lists linked music services.
func connectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "connections",
		Usage:  "List connected music services",
		Flags:  []cli.Flag{configFlag(), userFlag()},
		Action: r.ListConnections,
	}
}

// searchCommand queries provider catalogs.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search connected provider catalogs",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Provider to search (default: all connected)",
				Value:   "all",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum results per provider",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.SearchMusic,
	}
}

// matchCommand resolves one song against a provider catalog.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Resolve a song against a provider catalog",
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Target provider",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "title",
				Usage:    "Song title",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artist",
				Usage:    "Song artist",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Song album",
			},
			&cli.IntFlag{
				Name:  "duration",
				Usage: "Song duration in seconds",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.MatchSong,
	}
}

// importCommand pulls a provider playlist into the library.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a provider playlist into the library",
		ArgsUsage: "<provider-playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Source provider",
				Required: true,
			},
		},
		Action: r.ImportPlaylist,
	}
}

// exportCommand pushes a library playlist to a provider.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a library playlist to a provider",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Target provider",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "resume",
				Usage: "Job ID of a prior partially-failed export to resume",
			},
		},
		Action: r.ExportPlaylist,
	}
}

// playlistsCommand lists and inspects library playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Library playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List playlists you created",
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.BoolFlag{
						Name:  "shared",
						Usage: "List playlists shared with you instead",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.ListPlaylists,
			},
			{
				Name:      "show",
				Usage:     "Show one playlist with its songs",
				ArgsUsage: "<playlist-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, text",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to file instead of stdout",
					},
				},
				Action: r.ShowPlaylist,
			},
		},
	}
}

// jobsCommand inspects reconciliation jobs.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect reconciliation jobs",
		Flags: []cli.Flag{
			configFlag(),
			userFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.ListJobs,
	}
}
