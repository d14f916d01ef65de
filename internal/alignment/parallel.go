package alignment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/biogo/hts/sam"
)

// WorkItem holds a primary record ready for decoding.
type WorkItem struct {
	Seq    int
	Record *sam.Record
}

// WorkResult holds the decoded alignment for a single record.
type WorkResult struct {
	Seq       int
	Name      string
	Alignment *Alignment
	Err       error
}

// ParallelDecode decodes work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func ParallelDecode(items <-chan WorkItem, dataset string, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range items {
				a, err := Decode(item.Record, dataset)
				results <- WorkResult{
					Seq:       item.Seq,
					Name:      item.Record.Name,
					Alignment: a,
					Err:       err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Stream reads every record from r, decodes the primary alignments on a
// pool of workers and calls fn for each of them in file order. Records
// that are not primary alignments are skipped. If fn returns an error,
// reading stops and that error is returned.
func Stream(ctx context.Context, r RecordReader, dataset string, workers int, fn func(WorkResult) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem, 2*workers)
	readErr := make(chan error, 1)
	go func() {
		defer close(items)
		seq := 0
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- fmt.Errorf("read record %d: %w", seq+1, err)
				return
			}
			if !Primary(rec) {
				continue
			}
			select {
			case items <- WorkItem{Seq: seq, Record: rec}:
				seq++
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
	}()

	err := OrderedCollect(ParallelDecode(items, dataset, workers), func(res WorkResult) error {
		if err := fn(res); err != nil {
			cancel()
			return err
		}
		return nil
	})
	if rerr := <-readErr; err == nil {
		err = rerr
	}
	return err
}
