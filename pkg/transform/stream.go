package transform

import (
	"context"
	"encoding/json"
	"io"
)

// Result holds the output of one streaming step: the transformed record, or
// the error that failed it.
type Result struct {
	Value interface{}
	Err   error
}

// ErrorMode selects the sequential processor's failure policy.
type ErrorMode int

const (
	// ErrorModeThrow halts the stream at the first per-record error, which is
	// emitted as the final Result. The default.
	ErrorModeThrow ErrorMode = iota
	// ErrorModeContinue records each per-record error in the collector (when
	// one is supplied) and continues with the next record. Failing records
	// contribute no output.
	ErrorModeContinue
)

// StreamOptions configures a stream.
type StreamOptions struct {
	Mode ErrorMode
	// Collector receives each per-record error, in input order, under
	// ErrorModeContinue. The errors keep their structured type
	// (*types.RequiredFieldError, *types.ValidationError, ...), so callers can
	// inspect the violated paths rather than a flat message. It is appended to
	// by the stream goroutine; read it only after the result channel closes.
	Collector *[]error
}

// StreamOption configures one aspect of a stream.
type StreamOption func(*StreamOptions)

// OnErrorContinue switches the stream to the collect-and-continue policy.
func OnErrorContinue() StreamOption {
	return func(o *StreamOptions) { o.Mode = ErrorModeContinue }
}

// WithErrorCollector supplies the slice that collects per-record errors under
// OnErrorContinue.
func WithErrorCollector(collector *[]error) StreamOption {
	return func(o *StreamOptions) { o.Collector = collector }
}

// Stream applies the transformer to each record received on in, preserving
// input order in the output: each record is fully processed, success or
// recorded failure, before the next is read. The returned channel closes when
// in closes, the context is cancelled, or (under ErrorModeThrow) a record
// fails. Cancellation stops processing without flushing partial results.
//
// The caller must drain the channel or cancel the context.
func (t *Transformer) Stream(ctx context.Context, in <-chan map[string]interface{}, opts ...StreamOption) <-chan Result {
	options := applyStreamOptions(opts)
	out := make(chan Result, 16)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-in:
				if !ok {
					return
				}
				if !t.streamOne(ctx, rec, options, out) {
					return
				}
			}
		}
	}()

	return out
}

// StreamReader reads a sequence of JSON records from r (NDJSON or
// concatenated JSON values) and applies the transformer to each one. I/O and
// decode errors are fatal regardless of the error mode: they are emitted as a
// Result and close the stream.
func (t *Transformer) StreamReader(ctx context.Context, r io.Reader, opts ...StreamOption) <-chan Result {
	options := applyStreamOptions(opts)
	out := make(chan Result, 16)

	go func() {
		defer close(out)

		dec := json.NewDecoder(r)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var rec map[string]interface{}
			if err := dec.Decode(&rec); err != nil {
				if err != io.EOF {
					emit(ctx, out, Result{Err: err})
				}
				return
			}
			if !t.streamOne(ctx, rec, options, out) {
				return
			}
		}
	}()

	return out
}

// streamOne processes a single record. It reports whether the stream should
// continue.
func (t *Transformer) streamOne(ctx context.Context, rec map[string]interface{}, options StreamOptions, out chan<- Result) bool {
	result, err := t.Transform(rec)
	if err != nil {
		if options.Mode == ErrorModeContinue {
			if options.Collector != nil {
				*options.Collector = append(*options.Collector, err)
			}
			return true
		}
		emit(ctx, out, Result{Err: err})
		return false
	}
	return emit(ctx, out, Result{Value: result})
}

func emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

func applyStreamOptions(opts []StreamOption) StreamOptions {
	var options StreamOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
