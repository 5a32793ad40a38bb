// Package fetch implements the resilient background download engine.
//
// A Task downloads one HTTP resource on its own worker goroutine, streaming
// the body in small chunks through consumer-supplied hooks. Transient
// failures are retried with an escalating, bounded pause; registered
// monitors receive throttled progress reports and exactly one finish
// notification. The owning context (typically a UI loop) is never blocked.
//
// # Usage
//
//	task := fetch.New(client, url, &fetch.FileHandler{URL: url, Path: dest}, fetch.Options{
//	    Policy: fetch.DefaultPolicy(),
//	})
//	task.AddMonitor(myMonitor)
//
//	task.Start(ctx)
//	task.Wait()
//
//	if task.IsFailed() {
//	    return task.Err()
//	}
//
// # Lifecycle
//
// A task moves Waiting → Running → Finished, passing through Stopping when
// Stop is called. Starting a started task and stopping a non-running task
// are no-ops. Stop is cooperative: the worker observes it at the next chunk
// boundary, so up to one buffer of extra I/O may complete. A stopped task
// always terminates as Finished with ErrInterrupted recorded, never as a
// silently abandoned worker.
//
// # Progress semantics
//
// Within one attempt the downloaded counter is non-decreasing; every retry
// resets it to zero, so consumers must not assume monotonicity across the
// whole task lifetime. The finish notification arrives strictly after every
// progress notification of the final attempt and is never throttled.
package fetch
