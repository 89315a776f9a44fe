package knockout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job is one source to convert and where to put the result.
type Job struct {
	Source      string
	Destination string
}

// Jobs pairs every source with its default destination (see OutputPath).
func Jobs(sources ...string) []Job {
	jobs := make([]Job, len(sources))
	for i, src := range sources {
		jobs[i] = Job{Source: src, Destination: OutputPath(src)}
	}
	return jobs
}

// ConvertAll runs Convert for every job, at most workers at a time.
// Conversions share nothing, so one failing does not stop the others.
// Results come back in job order. Once ctx is done, jobs that have not
// started yet are reported as Canceled without touching the filesystem.
func (c *Converter) ConvertAll(ctx context.Context, jobs []Job, threshold, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failure(job.Source, job.Destination, 0,
					&Error{Kind: Canceled, Op: "convert", Path: job.Source, Err: err})
				c.observer.Finished(results[i])
				return nil
			}
			results[i] = c.Convert(job.Source, job.Destination, threshold)
			return nil
		})
	}
	g.Wait()
	return results
}
