// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/urfave/cli/v3"
)

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Source to use (YouTube or Spotify)",
		Value:   "YouTube",
	}
}

func limitFlag(value int) cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results",
		Value:   value,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output directory (defaults to download.output_dir)",
	}
}

func withFlags(flags ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, f := range flags {
		all = append(all, f...)
	}
	return all
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, the database and default source settings",
		Action: r.Setup,
	}
}

func doctorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "doctor",
		Usage:  "Check external tools and source readiness",
		Action: r.Doctor,
	}
}

func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sources",
		Usage:  "List sources with their lifecycle state and capabilities",
		Flags:  jsonFlags(),
		Action: r.Sources,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search songs",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: withFlags(
			[]cli.Flag{
				sourceFlag(),
				limitFlag(10),
				&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Search every available source"},
				&cli.StringFlag{Name: "artist", Usage: "Search songs by artist instead of a free-text query"},
				&cli.StringFlag{Name: "playlist", Usage: "List songs of a playlist ID through the search service"},
			},
			jsonFlags(),
		),
		Action: r.Search,
	}
}

func infoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show song metadata",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  withFlags([]cli.Flag{sourceFlag()}, jsonFlags()),
		Action: r.Info,
	}
}

func streamsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "streams",
		Usage: "List the audio streams of a song and the one that would be selected",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  withFlags([]cli.Flag{sourceFlag()}, jsonFlags()),
		Action: r.Streams,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a song by ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			sourceFlag(),
			outputFlag(),
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing file"},
			&cli.BoolFlag{Name: "plain", Usage: "Print progress lines instead of the interactive view"},
		},
		Action: r.Download,
	}
}

func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Download every song of a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags: []cli.Flag{
			sourceFlag(),
			outputFlag(),
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent downloads (defaults to download.workers)"},
			&cli.FloatFlag{Name: "rate", Usage: "Download starts per second (defaults to download.rate_limit)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Download at most this many songs"},
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace existing files"},
		},
		Action: r.Batch,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the user's playlists",
				Flags:  withFlags([]cli.Flag{sourceFlag()}, jsonFlags()),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its songs",
				Arguments: idArg,
				Flags:     withFlags([]cli.Flag{sourceFlag()}, jsonFlags()),
				Action:    r.PlaylistsShow,
			},
			{
				Name:  "search",
				Usage: "Search playlists",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags:  withFlags([]cli.Flag{sourceFlag(), limitFlag(10)}, jsonFlags()),
				Action: r.PlaylistsSearch,
			},
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					sourceFlag(),
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
					&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "add",
				Usage: "Add a song to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "song"},
				},
				Flags:  []cli.Flag{sourceFlag()},
				Action: r.PlaylistsAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a song from a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "song"},
				},
				Flags:  []cli.Flag{sourceFlag()},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: idArg,
				Flags:     []cli.Flag{sourceFlag()},
				Action:    r.PlaylistsDelete,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist to files",
				Arguments: idArg,
				Flags: []cli.Flag{
					sourceFlag(),
					outputFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or txt",
						Value:   formatter.FormatJSON,
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

func settingsCommand(r *Runner) *cli.Command {
	sourceArg := &cli.StringArg{Name: "source"}
	return &cli.Command{
		Name:  "settings",
		Usage: "Show and change per-source settings",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show the settings of a source",
				Arguments: []cli.Argument{sourceArg},
				Flags:     jsonFlags(),
				Action:    r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Change one setting",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "source"},
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.SettingsSet,
			},
			{
				Name:      "reset",
				Usage:     "Restore the default settings of a source",
				Arguments: []cli.Argument{&cli.StringArg{Name: "source"}},
				Action:    r.SettingsReset,
			},
		},
	}
}

func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Authorize mixdeck with your Spotify account (OAuth2)",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser callback"},
				},
				Action: r.SpotifyAuth,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded downloads",
		Flags: withFlags(
			[]cli.Flag{
				&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Only show downloads from this source"},
				&cli.StringFlag{Name: "status", Usage: "Only show downloads with this status"},
				limitFlag(20),
				&cli.BoolFlag{Name: "clear", Usage: "Delete the download history"},
			},
			jsonFlags(),
		),
		Action: r.History,
	}
}

func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local song cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Count cached songs per source",
				Action: r.CacheStats,
			},
			{
				Name:  "list",
				Usage: "List cached songs",
				Flags: withFlags(
					[]cli.Flag{
						&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Only list songs from this source"},
						&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by title or artist"},
						limitFlag(50),
					},
					jsonFlags(),
				),
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Remove cached songs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Only clear songs from this source"},
				},
				Action: r.CacheClear,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse playlists and download them interactively",
		Flags: []cli.Flag{
			sourceFlag(),
			outputFlag(),
		},
		Action: r.TUI,
	}
}
