package services

import "sync"

// runAll runs every task concurrently and waits for all of them,
// returning each task's outcome by index. Unlike errgroup-style
// primitives it never cancels siblings on the first failure, which the
// paired index writes and fan-out dispatch both depend on.
func runAll(tasks ...func() error) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(i int, task func() error) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()
	return errs
}

// firstError picks the first non-nil outcome from a runAll result.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
