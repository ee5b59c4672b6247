package async

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Go runs fn on its own goroutine with panic recovery. The returned channel
// receives fn's result, or the recovered panic as an error, and is then
// closed. Errors are also logged under the task name.
//
// Example:
//
//	done := async.Go(logger, "api server", func() error {
//	    return serve(srv)
//	})
func Go(log logrus.FieldLogger, taskName string, fn func() error) <-chan error {
	done := make(chan error, 1)

	go func() {
		defer close(done)
		done <- run(log.WithField("task", taskName), fn)
	}()

	return done
}

func run(log logrus.FieldLogger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("PANIC recovered: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := fn(); err != nil {
		log.WithError(err).Error("task failed")
		return err
	}
	return nil
}

// First returns the first non-nil error delivered by any of chans, or nil
// once all of them are closed without one.
func First(chans ...<-chan error) error {
	merged := make(chan error, len(chans))
	for _, ch := range chans {
		go func(ch <-chan error) {
			var first error
			for err := range ch {
				if err != nil && first == nil {
					first = err
				}
			}
			merged <- first
		}(ch)
	}

	for range chans {
		if err := <-merged; err != nil {
			return err
		}
	}
	return nil
}
