// Command enqueue inserts jobs into the queue and reports queue status.
//
// Usage:
//
//	enqueue [--season N] [--league-id N] <command> [flags]
//
// Commands:
//
//	batch          enqueue the full pipeline
//	roster         enqueue roster scrapes (--position, --level pro|college|both)
//	player         enqueue a player card scrape (--ottoneu-id, --name, --player-uuid)
//	nfl-stats      enqueue a snap count pull
//	player-stats   enqueue a box-score pull (--seasons 2023,2024)
//	status         print recent jobs (--limit)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/engine"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/tasks"
)

var errUsage = errors.New("usage: enqueue [--season N] [--league-id N] batch|roster|player|nfl-stats|player-stats|status [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "enqueue:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := scrapequeue.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Season, "season", cfg.Season, "season year")
	fs.IntVar(&cfg.LeagueID, "league-id", cfg.LeagueID, "Ottoneu league id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	logger, err := engine.NewLogger(stderr, cfg)
	if err != nil {
		return err
	}

	s, err := engine.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", scrapequeue.ErrMigrationFailed, err)
	}

	c := client.New(s, client.WithConfig(cfg), client.WithLogger(logger))
	return dispatch(ctx, c, fs.Arg(0), fs.Args()[1:], stdout, stderr)
}

func dispatch(ctx context.Context, c *client.Client, cmd string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "batch":
		if err := fs.Parse(args); err != nil {
			return err
		}
		b, err := c.Batch(ctx, client.BatchRequest{})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Enqueued batch %s with %d jobs (season %d, league %d)\n",
			b.ID, len(b.Jobs), c.Season(), c.LeagueID())
		return printJobs(stdout, b.Jobs...)

	case "roster":
		position := fs.String("position", "", "position to scrape (QB, RB, WR, TE, K)")
		level := fs.String("level", tasks.LevelPro, "pro, college or both")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *position == "" {
			return errors.New("roster: --position is required")
		}
		jobs, err := c.EnqueueRoster(ctx, *position, *level)
		if err != nil {
			return err
		}
		return printJobs(stdout, jobs...)

	case "player":
		ottoneuID := fs.Int("ottoneu-id", 0, "Ottoneu player id")
		name := fs.String("name", "", "player name")
		playerUUID := fs.String("player-uuid", "", "player uuid")
		team := fs.String("fantasy-team", "", "fantasy team that rosters the player")
		if err := fs.Parse(args); err != nil {
			return err
		}
		pid, err := uuid.Parse(*playerUUID)
		if err != nil {
			return fmt.Errorf("player: --player-uuid: %w", err)
		}
		j, err := c.EnqueuePlayerCard(ctx, client.PlayerCard{
			OttoneuID:   *ottoneuID,
			Name:        *name,
			PlayerUUID:  pid,
			FantasyTeam: *team,
		})
		if err != nil {
			return err
		}
		return printJobs(stdout, j)

	case "nfl-stats":
		if err := fs.Parse(args); err != nil {
			return err
		}
		j, err := c.EnqueueNFLStats(ctx)
		if err != nil {
			return err
		}
		return printJobs(stdout, j)

	case "player-stats":
		seasonList := fs.String("seasons", "", "comma separated seasons (default: historical seasons)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		seasons, err := parseSeasons(*seasonList)
		if err != nil {
			return err
		}
		j, err := c.EnqueuePlayerStats(ctx, seasons)
		if err != nil {
			return err
		}
		return printJobs(stdout, j)

	case "status":
		limit := fs.Int("limit", client.DefaultStatusLimit, "number of recent jobs to show")
		if err := fs.Parse(args); err != nil {
			return err
		}
		r, err := c.Status(ctx, *limit)
		if err != nil {
			return err
		}
		return client.WriteStatus(stdout, r)

	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func parseSeasons(s string) ([]int, error) {
	var seasons []int
	for _, part := range scrapequeue.SplitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("player-stats: invalid season %q", part)
		}
		seasons = append(seasons, n)
	}
	return seasons, nil
}

func printJobs(w io.Writer, jobs ...*job.Job) error {
	for _, j := range jobs {
		if _, err := fmt.Fprintf(w, "  %s  %s\n", j.ID, client.Label(j)); err != nil {
			return err
		}
	}
	return nil
}
