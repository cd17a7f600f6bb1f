package processing

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"mmproteo/internal/logging"
	"mmproteo/internal/textutil"
)

// Options configures one Process call.
type Options struct {
	// Action is the verb used in log lines, e.g. "download".
	Action string
	// PastTense overrides the derived past tense of Action.
	PastTense string
	// Subject is the singular noun for items. Defaults to "file".
	Subject string
	// MaxItems stops issuing new batches once this many items were counted
	// as processed. Zero means unbounded.
	MaxItems int
	// Workers is the pool size. Zero uses one worker per CPU and one runs
	// items inline in the calling goroutine.
	Workers int
	// CountFailures counts Failure outcomes toward MaxItems.
	CountFailures bool
	// CountNulls counts Null outcomes (skipped items) toward MaxItems.
	CountNulls bool
	// KeepNulls keeps absent inputs and Null outcomes in the result so that
	// Outcomes lines up with the input.
	KeepNulls bool
	Logger    *slog.Logger
}

// Result is the output of Process.
type Result[O any] struct {
	// Outcomes follows input order. With KeepNulls it has one entry per
	// input item and unattempted items are Null; otherwise Null outcomes are
	// dropped.
	Outcomes []Outcome[O]
	// Positions maps every outcome to the index of its input item.
	Positions []int
	// Successes is the tally compared against MaxItems.
	Successes int
	// Available is the number of present input items.
	Available int
	Batches   int
	Workers   int
}

// Values returns the successful values in order.
func (r Result[O]) Values() []O {
	values := make([]O, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if v, ok := o.Get(); ok {
			values = append(values, v)
		}
	}
	return values
}

// Process runs fn over the present items, at most opts.Workers at a time, and
// stops issuing batches once opts.MaxItems outcomes have been counted.
// Item-level errors never abort the run. The returned error is non-nil only
// when ctx is cancelled; in-flight items are then abandoned and no partial
// result is returned.
func Process[I, O any](ctx context.Context, items []Maybe[I], fn Func[I, O], opts Options) (Result[O], error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	subject := opts.Subject
	if subject == "" {
		subject = "file"
	}
	past := textutil.PastTense(opts.Action, opts.PastTense)

	work := make([]Maybe[I], 0, len(items))
	positions := make([]int, 0, len(items))
	available := 0
	for i, item := range items {
		_, ok := item.Get()
		if ok {
			available++
		}
		if ok || opts.KeepNulls {
			work = append(work, item)
			positions = append(positions, i)
		}
	}

	result := Result[O]{Available: available}
	if available == 0 {
		logging.WarnWithContext(logger, fmt.Sprintf("No %ss available to %s", subject, opts.Action), "no_items",
			logging.String(logging.FieldImpact, "nothing was "+past),
			logging.String(logging.FieldErrorHint, "check the filter, extension list and previous stages"))
		if opts.KeepNulls {
			result.Outcomes = make([]Outcome[O], len(items))
			result.Positions = positions
		}
		return result, nil
	}

	toProcess := available
	bounded := opts.MaxItems > 0 && opts.MaxItems < available
	if bounded {
		toProcess = opts.MaxItems
	}
	workers := effectiveWorkers(opts.Workers, toProcess)
	result.Workers = workers
	logger.Debug(fmt.Sprintf("Trying to %s %d %s", opts.Action, toProcess, textutil.Plural(toProcess, subject)),
		logging.Int("workers", workers))

	p := &pool[I, O]{fn: fn, workers: workers, logger: logger, action: opts.Action}
	outcomes := make([]Outcome[O], 0, len(work))
	counted := func() int {
		n := 0
		for i, o := range outcomes {
			if _, present := work[i].Get(); present && opts.counts(o.Kind) {
				n++
			}
		}
		return n
	}

	if !bounded {
		batch, err := p.run(ctx, work)
		if err != nil {
			return Result[O]{}, err
		}
		outcomes = append(outcomes, batch...)
		result.Batches = 1
	} else {
		deficit := opts.MaxItems
		for deficit > 0 && len(outcomes) < len(work) {
			end := min(len(outcomes)+deficit, len(work))
			batch, err := p.run(ctx, work[len(outcomes):end])
			if err != nil {
				return Result[O]{}, err
			}
			outcomes = append(outcomes, batch...)
			result.Batches++
			deficit = opts.MaxItems - counted()
		}
	}
	result.Successes = counted()

	// Skipped and failed items may count toward MaxItems but are not reported as done.
	succeeded := 0
	for _, o := range outcomes {
		if o.Kind == Success {
			succeeded++
		}
	}
	if succeeded > 0 {
		logger.Info(fmt.Sprintf("Successfully %s %d %s", past, succeeded, textutil.Plural(succeeded, subject)))
	} else {
		logger.Info(fmt.Sprintf("No %ss were %s", subject, past))
	}

	if opts.KeepNulls {
		result.Outcomes = make([]Outcome[O], len(items))
		result.Positions = make([]int, len(items))
		for i := range items {
			result.Positions[i] = i
		}
		for i, o := range outcomes {
			result.Outcomes[positions[i]] = o
		}
		return result, nil
	}
	for i, o := range outcomes {
		if o.Kind == Null {
			continue
		}
		result.Outcomes = append(result.Outcomes, o)
		result.Positions = append(result.Positions, positions[i])
	}
	return result, nil
}

func (o Options) counts(kind Kind) bool {
	switch kind {
	case Success:
		return true
	case Failure:
		return o.CountFailures
	default:
		return o.CountNulls
	}
}

func effectiveWorkers(requested, toProcess int) int {
	workers := requested
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, toProcess)
	return max(workers, 1)
}

type pool[I, O any] struct {
	fn      Func[I, O]
	workers int
	logger  *slog.Logger
	action  string
}

// run processes one batch and returns its outcomes in batch order. Absent
// items are never handed to fn.
func (p *pool[I, O]) run(ctx context.Context, batch []Maybe[I]) ([]Outcome[O], error) {
	results := make([]Outcome[O], len(batch))
	if p.workers == 1 {
		for i, item := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = p.invoke(ctx, i, item)
		}
		return results, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i, item := range batch {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				// A slot may free up after cancellation; start nothing new then.
				if ctx.Err() != nil {
					return nil
				}
				results[i] = p.invoke(ctx, i, item)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Info("Abandoning in-flight items", logging.String("action", p.action))
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *pool[I, O]) invoke(ctx context.Context, index int, item Maybe[I]) (out Outcome[O]) {
	value, ok := item.Get()
	if !ok {
		return Skip[O]()
	}
	defer func() {
		if r := recover(); r != nil {
			out = Fail[O](fmt.Errorf("panic while processing item: %v", r))
		}
		if out.Kind == Failure {
			p.logger.Warn(fmt.Sprintf("Failed to %s item", p.action),
				logging.Any("item", value),
				logging.Int("batch_index", index),
				logging.Error(out.Err))
		}
	}()
	return p.fn(ctx, value)
}
