package emoteline

import (
	"runtime"
	"sync"
)

// forEachFrame calls fn for every index in [0, n) on at most workers
// goroutines. Each call owns its index, so callers store results by position
// and frame order never depends on scheduling. The error of the lowest failing
// index is returned.
func forEachFrame(n, workers int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	errs := make([]error, n)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
