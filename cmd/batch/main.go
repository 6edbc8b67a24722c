package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/mockup-studio/internal/app"
	"github.com/timmy/mockup-studio/internal/config"
	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/logger"
	"github.com/timmy/mockup-studio/internal/manifest"
	"github.com/timmy/mockup-studio/internal/service"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "batch",
		Usage: "Run mockup generation jobs from a manifest",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Enqueue every job in a manifest and run them to completion",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "manifest",
						Aliases:  []string{"m"},
						Usage:    "Path to the YAML job manifest",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Usage:   "Path to the config file",
						Sources: cli.EnvVars("CONFIG_PATH"),
					},
				},
				Action: runAction,
			},
			{
				Name:  "validate",
				Usage: "Check a manifest without running it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "manifest",
						Aliases:  []string{"m"},
						Usage:    "Path to the YAML job manifest",
						Required: true,
					},
				},
				Action: validateAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	m, err := manifest.Load(cmd.String("manifest"))
	if err != nil {
		return err
	}
	reqs, err := m.Requests()
	if err != nil {
		return err
	}
	total := 0
	for _, r := range reqs {
		total += len(r.Prompts) * r.Count
	}
	fmt.Printf("manifest ok: %d job(s), %d generation(s)\n", len(reqs), total)
	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appLogger := app.NewLogger(&cfg.Log, "mockup-studio-batch")
	defer logger.Sync()

	m, err := manifest.Load(cmd.String("manifest"))
	if err != nil {
		return err
	}
	reqs, err := m.Requests()
	if err != nil {
		return err
	}
	samples, err := m.SampleURLs()
	if err != nil {
		return err
	}

	// The manifest decides when jobs start.
	cfg.Queue.BatchMode = false
	studio, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer studio.Close()
	if len(samples) > 0 {
		studio.Samples.Set(samples)
	}

	updates, unsubscribe := studio.Broker.Subscribe()
	defer unsubscribe()

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()
	studio.Dispatcher.Start(runCtx)

	jobIDs, err := enqueueAll(ctx, studio.Dispatcher, reqs, cancelRun)
	if err != nil {
		return err
	}
	studio.Dispatcher.SetBatchMode(true)

	// Updates may be dropped under load; the ticker re-checks the queue.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	interrupted := false
	for studio.Queue.Pending() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if !interrupted {
				// Cancel everything; the running job unwinds at its next check point.
				interrupted = true
				fmt.Fprintln(os.Stderr, "interrupted, cancelling jobs...")
				studio.Dispatcher.SetBatchMode(false)
				for _, id := range jobIDs {
					_, _ = studio.Dispatcher.Cancel(context.Background(), id)
				}
			}
			ctx = context.Background()
		case u := <-updates:
			printUpdate(u)
		}
	}
	cancelRun()
	studio.Dispatcher.Wait()

	return summarize(studio.Queue.List())
}

// enqueueAll queues every request in order. On the first failure it stops
// the dispatcher and waits for any started job before returning.
func enqueueAll(ctx context.Context, d *service.Dispatcher, reqs []service.EnqueueRequest, stop context.CancelFunc) ([]string, error) {
	ids := make([]string, 0, len(reqs))
	for i, req := range reqs {
		job, err := d.Enqueue(ctx, req)
		if err != nil {
			stop()
			d.Wait()
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		ids = append(ids, job.ID)
	}
	return ids, nil
}

func printUpdate(u domain.JobUpdate) {
	switch u.Kind {
	case domain.UpdateKindProgress:
		mark := "ok"
		if u.Entry != nil && u.Entry.Failed() {
			mark = "failed: " + u.Entry.Error
		}
		fmt.Printf("%s [%d/%d] %s\n", u.JobID, u.Progress.Done, u.Progress.Total, mark)
	case domain.UpdateKindStatus:
		line := fmt.Sprintf("%s %s", u.JobID, u.Status)
		if u.Error != "" {
			line += ": " + u.Error
		}
		fmt.Println(line)
	}
}

func summarize(jobs []*domain.Job) error {
	failedJobs := 0
	for _, j := range jobs {
		fmt.Printf("%-40s %-10s %d/%d done, %d failed\n", j.ID, j.Status, j.Progress.Done, j.Progress.Total, j.FailedResults())
		if j.Status == domain.JobStatusError {
			failedJobs++
		}
	}
	if failedJobs > 0 {
		return cli.Exit(fmt.Sprintf("%d job(s) ended in error", failedJobs), 1)
	}
	return nil
}
