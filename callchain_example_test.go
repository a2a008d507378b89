package callchain_test

import (
	"fmt"
	"slices"

	cc "github.com/veggiemonk/callchain"
)

// Example demonstrates how to run a chain of callback steps sharing a context.
func Example() {
	// Create a new chain.
	c := cc.New[int]()

	// Define the steps of the chain.
	c.Steps = []cc.Step[int]{
		// Step 1: produce a first value.
		cc.StepFunc[int](func(done cc.Callback[int], _ int, _ *cc.Context[int]) {
			done(nil, 1)
		}),
		// Step 2: remember the running value in the context.
		cc.StoreInContext("first", cc.StepFunc[int](func(done cc.Callback[int], v int, _ *cc.Context[int]) {
			done(nil, v+1)
		})),
		// Step 3: read it back.
		cc.StepFunc[int](func(done cc.Callback[int], v int, c *cc.Context[int]) {
			first, _ := cc.Value[int](c, "first")
			done(nil, v*10+first)
		}),
	}

	// Print the chain structure.
	fmt.Println(c)

	// Run the chain.
	c.Run(func(err error, v int) {
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Println("Final Result:", v)
	}, 0, nil)

	// Output: Chain[int]
	// ├── StepFunc[int]
	// ├── StoreInContext(StepFunc[int])
	// └── StepFunc[int]
	// Final Result: 21
}

// ExampleContext_Break shows a step ending the run early.
func ExampleContext_Break() {
	cc.Run(cc.Steps(
		func(done cc.Callback[string], _ string, c *cc.Context[string]) {
			c.Break("cached", done)
		},
		func(done cc.Callback[string], _ string, _ *cc.Context[string]) {
			done(nil, "fetched")
		},
	), func(err error, v string) {
		fmt.Println(v, err)
	})
	// Output: cached <nil>
}

// ExampleMapChain fans out over a slice and keeps the input order.
func ExampleMapChain() {
	finished := make(chan struct{})
	cc.MapChain([]int{1, 2, 3}, func(v int, done cc.Callback[int]) {
		done(nil, v+1)
	}, func(errs []error, values []int) {
		fmt.Println(errs, values)
		close(finished)
	})
	<-finished
	// Output: [] [2 3 4]
}

// ExampleParallelMap fans out over a slice without ordering guarantees.
func ExampleParallelMap() {
	finished := make(chan struct{})
	cc.ParallelMap([]int{1, 2, 3}, func(v int, done cc.Callback[int]) {
		done(nil, v+1)
	}, func(_ []error, values []int) {
		slices.Sort(values)
		fmt.Println(values)
		close(finished)
	})
	<-finished
	// Output: [2 3 4]
}
