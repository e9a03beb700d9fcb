package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keshav2232/viva/internal/config"
	"github.com/keshav2232/viva/internal/render"
)

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered candidates, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			st, err := openStorage(cfg)
			if err != nil {
				exitOnError(err)
			}
			defer st.Close()

			users, err := st.ListUsers(context.Background())
			if err != nil {
				exitOnError(err)
			}
			if jsonOut {
				printJSON(users)
				return
			}
			render.Stdout().Print(render.New(pretty).Users(users))
		},
	}
}

func reportCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report [session-id]",
		Short: "Show an archived session report, or list recent ones",
		Long: `Show an archived session report by id. Without an id, list the most recent
reports; listing reads the sqlite archive and is unavailable with storage.archive: redis.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			st, err := openStorage(cfg)
			if err != nil {
				exitOnError(err)
			}
			defer st.Close()

			if len(args) == 0 {
				if err := canListReports(cfg); err != nil {
					exitOnError(err)
				}
				infos, err := st.ListReports(ctx, limit)
				if err != nil {
					exitOnError(err)
				}
				if jsonOut {
					printJSON(infos)
					return
				}
				w := render.Stdout()
				if len(infos) == 0 {
					w.Empty("No reports found")
					return
				}
				for _, ri := range infos {
					w.Println("%s  %s  %-18s %4.1f  %s", ri.FinishedAt.Local().Format("2006-01-02 15:04"),
						ri.SessionID, ri.Persona, ri.OverallScore, render.Truncate(ri.Topic, 40))
				}
				return
			}

			reports, closeArchive, err := openArchive(cfg, st)
			if err != nil {
				exitOnError(err)
			}
			defer closeArchive()
			if reports == nil {
				exitOnError(fmt.Errorf("report archive is disabled (storage.archive: none)"))
			}

			rep, err := reports.GetReport(ctx, args[0])
			if err != nil {
				exitOnError(err)
			}
			if jsonOut {
				printJSON(rep)
				return
			}
			render.Stdout().Print(render.New(pretty).Report(rep))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of reports to list")
	return cmd
}

// canListReports reports whether finished sessions land in the sqlite table
// that ListReports reads.
func canListReports(c *config.Config) error {
	switch strings.ToLower(c.Storage.Archive) {
	case config.ArchiveRedis:
		return errors.New("listing reports needs the sqlite archive (storage.archive is redis); pass a session id")
	case config.ArchiveNone:
		return errors.New("report archive is disabled (storage.archive: none)")
	}
	return nil
}
