package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Cron runs task on the standard cron expression spec (descriptors such as
// "@every 1h" included) until ctx is done. With runNow the task also fires
// immediately. Runs never overlap; a tick that lands mid-run is skipped.
func Cron(ctx context.Context, spec string, runNow bool, name string, task Task) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	run := func() {
		if err := task(ctx); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(run))
	c.Start()
	log.Printf("[%s] scheduled %q next=%s", name, spec, sched.Next(time.Now()).Format("15:04:05"))

	if runNow {
		go run()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
