package scan

import (
	"context"
	"errors"
)

// Sink receives the results of completed batches. WriteBatch is called
// once per batch, after every worker in the batch has finished.
type Sink interface {
	WriteBatch(ctx context.Context, batch int, results []DeviceResult) error
	Close() error
}

// MultiSink fans batches out to several sinks. Every sink sees every
// batch even if an earlier sink fails.
type MultiSink []Sink

func (m MultiSink) WriteBatch(ctx context.Context, batch int, results []DeviceResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.WriteBatch(ctx, batch, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
