// Package async runs long-lived tasks, such as server loops, on goroutines
// with panic recovery and logrus error reporting.
//
//	apiDone := async.Go(logger, "api server", serveAPI)
//	healthDone := async.Go(logger, "health server", serveHealth)
//	if err := async.First(apiDone, healthDone); err != nil {
//		logger.WithError(err).Fatal("server failed")
//	}
package async
