package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
)

// DefaultStatusLimit is the number of jobs Status lists when limit <= 0.
const DefaultStatusLimit = 20

// StatusReport summarizes the queue.
type StatusReport struct {
	// Jobs are the most recent jobs, newest first.
	Jobs []*job.Job `json:"jobs"`
	// Recent counts Jobs by status.
	Recent map[job.Status]int `json:"recent"`
	// Totals counts every stored job by status.
	Totals map[job.Status]int64 `json:"totals"`
}

// Status returns the limit most recent jobs with status counts.
func (c *Client) Status(ctx context.Context, limit int) (*StatusReport, error) {
	if limit <= 0 {
		limit = DefaultStatusLimit
	}
	jobs, err := c.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("client: list recent jobs: %w", err)
	}

	r := &StatusReport{
		Jobs:   jobs,
		Recent: make(map[job.Status]int),
		Totals: make(map[job.Status]int64, len(job.Statuses)),
	}
	for _, j := range jobs {
		r.Recent[j.Status]++
	}
	for _, s := range job.Statuses {
		n, err := c.store.CountJobs(ctx, job.CountOpts{Status: s})
		if err != nil {
			return nil, fmt.Errorf("client: count %s jobs: %w", s, err)
		}
		r.Totals[s] = n
	}
	return r, nil
}

// WriteStatus renders r as a summary line and a job table.
func WriteStatus(w io.Writer, r *StatusReport) error {
	if len(r.Jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs found.")
		return err
	}

	var parts []string
	for _, s := range job.Statuses {
		if n := r.Recent[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if _, err := fmt.Fprintf(w, "Recent %d jobs: %s\n\n", len(r.Jobs), strings.Join(parts, ", ")); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tATTEMPTS\tERROR")
	for _, j := range r.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			j.ID.Short(),
			Label(j),
			j.Status,
			j.Attempts, j.MaxAttempts,
			truncate(j.LastError, 30, ""),
		)
	}
	return tw.Flush()
}

// Label returns the job's task type with a short description of its
// params: the position for rosters and the player name for cards.
func Label(j *job.Job) string {
	switch j.TaskType {
	case task.ScrapeRoster:
		var p tasks.RosterParams
		if json.Unmarshal(j.Params, &p) != nil || p.Position == "" {
			break
		}
		if p.Level == tasks.LevelCollege {
			return fmt.Sprintf("%s(%s,col)", j.TaskType, p.Position)
		}
		return fmt.Sprintf("%s(%s)", j.TaskType, p.Position)
	case task.ScrapePlayerCard:
		var p tasks.PlayerCardParams
		if json.Unmarshal(j.Params, &p) != nil || p.PlayerName == "" {
			break
		}
		return fmt.Sprintf("%s(%s)", j.TaskType, truncate(p.PlayerName, 12, ".."))
	}
	return string(j.TaskType)
}

func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
