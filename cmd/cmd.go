// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// jobsCommand handles job inspection
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "jobs",
		Aliases: []string{"ls"},
		Usage:   "Inspect tracked download jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all jobs, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show one job in full",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.JobShow,
			},
			{
				Name:   "watch",
				Usage:  "Stream live job updates until interrupted",
				Action: r.JobsWatch,
			},
			{
				Name:  "logs",
				Usage: "Fetch a job's log tail",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "entry-id",
						Usage: "Fetch logs for one playlist entry by id",
					},
					&cli.IntFlag{
						Name:  "entry-index",
						Usage: "Fetch logs for one playlist entry by 1-based index",
					},
				},
				Action: r.JobLogs,
			},
			{
				Name:  "options",
				Usage: "Fetch a job's effective download options",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "entry-id",
						Usage: "Fetch options for one playlist entry by id",
					},
					&cli.IntFlag{
						Name:  "entry-index",
						Usage: "Fetch options for one playlist entry by 1-based index",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.JobOptions,
			},
		},
	}
}

// startCommand submits new download jobs
func startCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Submit a new download job",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "options",
				Aliases: []string{"o"},
				Usage:   "Download options as a JSON object",
			},
			&cli.StringFlag{
				Name:    "metadata",
				Aliases: []string{"m"},
				Usage:   "Metadata hints as a JSON object (e.g. '{\"is_playlist\": true}')",
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Owner tag recorded on the job",
			},
		},
		Action: r.Start,
	}
}

// controlCommand groups the job lifecycle commands
func controlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "job",
		Usage: "Control a single job",
		Commands: []*cli.Command{
			{
				Name:      "pause",
				Usage:     "Pause a running job",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.Pause,
			},
			{
				Name:      "resume",
				Usage:     "Resume a paused job",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.Resume,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a job",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.Cancel,
			},
			{
				Name:      "retry",
				Usage:     "Retry a failed job",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.Retry,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a job server-side",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.Delete,
			},
		},
	}
}

// playlistCommand handles playlist entries and selection
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist entries and selection",
		Commands: []*cli.Command{
			{
				Name:      "entries",
				Usage:     "List a playlist job's entries",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistEntries,
			},
			{
				Name:      "select",
				Usage:     "Submit a playlist entry selection",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "indices",
						Usage: "Comma-separated 1-based entry indices",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Select every entry",
					},
				},
				Action: r.PlaylistSelect,
			},
			{
				Name:      "retry-entries",
				Usage:     "Retry failed playlist entries",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "indices",
						Usage: "Comma-separated 1-based entry indices",
					},
					&cli.BoolFlag{
						Name:  "all-failed",
						Usage: "Retry every failed entry not already queued",
					},
				},
				Action: r.PlaylistRetryEntries,
			},
			{
				Name:   "pending",
				Usage:  "List jobs waiting on a playlist selection",
				Action: r.PlaylistPending,
			},
		},
	}
}

// previewCommand resolves a URL without creating a job
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Resolve a URL's title and playlist shape without downloading",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Preview,
	}
}

// setupCommand writes the starter config file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter config.toml",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
