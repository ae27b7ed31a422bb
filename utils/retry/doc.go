// Package retry provides exponential backoff and a small retry loop for transient failures
// in network requests and other operations.
//
// The REST dispatcher only borrows Config and Delay: it keeps a failing request at the head
// of its bucket queue and sleeps Delay(attempt) between attempts, so per-bucket ordering is
// preserved. Execute is the standalone loop for everything else:
//
//	err := retry.Execute(ctx, retry.Options{
//	    Config: retry.DefaultConfig(),
//	    ErrorChecker: func(err error) bool {
//	        return errors.Is(err, io.ErrUnexpectedEOF)
//	    },
//	    Name: "stats",
//	}, func(attempt int) error {
//	    return record(ctx)
//	})
//
// Configuration:
//   - MaxRetries: attempts after the first one (default: 3)
//   - BaseDelay: delay before the first retry (default: 500ms)
//   - MaxDelay: cap for any single delay (default: 5s)
//   - BackoffMultiple: growth factor between retries (default: 2.0)
//
// The delay before retry n (0-based) is BaseDelay * BackoffMultiple^n, capped at MaxDelay.
package retry
