package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Dispatcher turns a named call into an executed operation with a uniform result.
type Dispatcher struct {
	catalog *Catalog
	logger  ports.Logger
}

// NewDispatcher creates a dispatcher over catalog.
func NewDispatcher(catalog *Catalog, logger ports.Logger) *Dispatcher {
	return &Dispatcher{catalog: catalog, logger: logger}
}

// Catalog returns the catalog the dispatcher resolves against.
func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Dispatch resolves and invokes call.Operation. It never panics and never
// returns a Go error: every failure is carried in Result.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, call domain.Call) (res domain.Result) {
	start := time.Now()
	res = domain.Result{CallID: call.CallID, Operation: call.Operation}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operation panicked",
				ports.String("operation", call.Operation),
				ports.Any("panic", r),
				ports.String("stack", string(debug.Stack())),
			)
			res.Value = nil
			res.Error = domain.NewErrorPayload(fmt.Errorf("%w: panic: %v", domain.ErrDispatch, r))
		}
		d.audit(call, res, time.Since(start))
	}()

	op, err := d.catalog.Resolve(call.Operation)
	if err != nil {
		res.Error = domain.NewErrorPayload(err)
		return res
	}

	args := Args(call.Args)
	if missing := missingParams(op, args); len(missing) > 0 {
		res.Error = domain.NewErrorPayload(fmt.Errorf("%w: %s requires %s",
			domain.ErrMissingParams, op.Name, strings.Join(missing, ", ")))
		return res
	}
	if args.Len() == 0 {
		args = nil
	}

	value, err := op.Invoke(ctx, args)
	if err != nil {
		res.Error = domain.NewErrorPayload(err)
		return res
	}
	res.Value = value
	return res
}

// missingParams returns the required parameters not covered by args.
func missingParams(op Operation, args Args) []string {
	if args.Len() >= len(op.RequiredParams) {
		return nil
	}
	return op.RequiredParams[args.Len():]
}

func (d *Dispatcher) audit(call domain.Call, res domain.Result, took time.Duration) {
	fields := []ports.Field{
		ports.String("operation", call.Operation),
		ports.String("call_id", call.CallID),
		ports.String("channel", call.Channel),
		ports.Int("args", len(call.Args)),
		ports.Duration("took", took),
	}
	if res.Error != nil {
		fields = append(fields,
			ports.String("code", res.Error.Code),
			ports.String("error", res.Error.Message),
		)
		d.logger.Warn("dispatch failed", fields...)
		return
	}
	d.logger.Info("dispatch", fields...)
}
