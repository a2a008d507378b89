// Package callchain sequences and parallelizes callback-style asynchronous
// operations.
//
// # Key Features
//
//   - **Chains**: Run steps strictly in order, threading a running value from one step to the next.
//   - **Shared Context**: Steps of one run share a key/value store and can break or fail the run early.
//   - **Watchdog**: An optional per-step deadline turns a stuck step into a *TimeoutError.
//   - **Fan-out**: Launch operations concurrently and join on the completion of all of them.
//   - **Middleware**: Wrap steps to add logging, deadlines, guards or expectations.
//
// # Core Concepts
//
//   - **Step**: One unit of work. It receives a completion [Callback], the running value and the [Context], and must call the callback exactly once.
//   - **Chain**: An ordered list of steps. A run settles exactly once, through a callback ([Chain.Run]) or a [Future] ([Chain.Promise]).
//   - **Context**: The state shared by the steps of one run. [Context.Break] ends the run with a value, [Context.Error] ends it with an error.
//   - **MapChain / ParallelMap**: Fan out over a slice, collecting results in input order or in completion order.
//   - **Parallel**: Wait for every operation and report only the last completion; [ParallelAll] keeps every result.
//
// Example:
//
//	callchain.Run(callchain.Steps(
//		func(done callchain.Callback[int], _ int, _ *callchain.Context[int]) { done(nil, 1) },
//		func(done callchain.Callback[int], v int, c *callchain.Context[int]) {
//			c.Set("first", v)
//			done(nil, v+1)
//		},
//	), func(err error, v int) {
//		// err == nil, v == 2
//	})
package callchain
