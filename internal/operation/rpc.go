package operation

import (
	"context"
	"log/slog"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

// RPCConstructor builds a server object instance for a registered
// className, given the operation's request data. This explicit,
// process-wide registry stands in for dynamic class loading from
// <cwd>/<className>.
type RPCConstructor func(data any) (any, error)

// RPCRegistry resolves a className to its constructor.
type RPCRegistry interface {
	Lookup(className string) (RPCConstructor, bool)
}

// Capability interfaces an RPC server object may optionally implement;
// calls each "if exposed".
type rpcInitializer interface{ Init(data any) error }
type rpcTransactional interface {
	StartTransaction(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
type rpcMethodInvoker interface {
	Invoke(ctx context.Context, methodName string, data any) (any, error)
}
type rpcExecutor interface {
	Execute(ctx context.Context, data any) (any, error)
}
type rpcFreer interface{ FreeResources() error }

// RPCOperation looks up a registered className and drives the
// resulting server object through the same init/execute/free lifecycle
// as a DS operation.
type RPCOperation struct {
	Envelope          *envelope.Operation
	Registry          RPCRegistry
	Logger            *slog.Logger
	IncludeStacktrace bool

	instance any
}

func (o *RPCOperation) Init() error {
	if o.Envelope.ClassName == "" || o.Registry == nil {
		return nil // no className: execute will echo the request
	}
	ctor, ok := o.Registry.Lookup(o.Envelope.ClassName)
	if !ok {
		return nil // unregistered class: treated the same as "no instance"
	}

	instance, err := ctor(o.Envelope.Data)
	if err != nil {
		return apperrors.Wrap(apperrors.BackendError, err)
	}
	o.instance = instance

	if initer, ok := instance.(rpcInitializer); ok {
		if err := initer.Init(o.Envelope.Data); err != nil {
			return apperrors.Wrap(apperrors.BackendError, err)
		}
	}
	return nil
}

func (o *RPCOperation) Execute(ctx context.Context) *Result {
	if o.instance == nil {
		return &Result{Kind: envelope.KindRPC, Status: 0, Data: o.Envelope.Data}
	}

	txn, isTxn := o.instance.(rpcTransactional)
	if isTxn {
		if err := txn.StartTransaction(ctx); err != nil {
			return o.errorResult(err)
		}
	}

	result, err := o.invoke(ctx)
	if err != nil {
		if isTxn {
			if rbErr := txn.Rollback(ctx); rbErr != nil {
				o.logf("rollback failed", rbErr)
			}
		}
		return o.errorResult(err)
	}

	if isTxn {
		if err := txn.Commit(ctx); err != nil {
			if rbErr := txn.Rollback(ctx); rbErr != nil {
				o.logf("rollback after failed commit also failed", rbErr)
			}
			return &Result{Kind: envelope.KindRPC, Status: apperrors.TransactionFailed.Status()}
		}
	}

	return &Result{Kind: envelope.KindRPC, Status: 0, Data: result}
}

func (o *RPCOperation) invoke(ctx context.Context) (any, error) {
	if o.Envelope.MethodName != "" {
		invoker, ok := o.instance.(rpcMethodInvoker)
		if !ok {
			return nil, apperrors.New(apperrors.Unimplemented, "methodName "+o.Envelope.MethodName+" not exposed", nil)
		}
		return invoker.Invoke(ctx, o.Envelope.MethodName, o.Envelope.Data)
	}
	if executor, ok := o.instance.(rpcExecutor); ok {
		return executor.Execute(ctx, o.Envelope.Data)
	}
	// Missing instance or missing execute -> echo the request data with
	// status 0.
	return o.Envelope.Data, nil
}

func (o *RPCOperation) FreeResources() {
	if o.instance == nil {
		return
	}
	if freer, ok := o.instance.(rpcFreer); ok {
		if err := freer.FreeResources(); err != nil {
			o.logf("freeResources failed", err)
		}
	}
}

func (o *RPCOperation) errorResult(err error) *Result {
	o.logf("RPC operation failed", err)
	result := &Result{Kind: envelope.KindRPC, Status: statusFor(err), Data: err.Error()}
	return withStacktrace(result, err, o.IncludeStacktrace, nil)
}

func (o *RPCOperation) logf(msg string, err error) {
	if o.Logger != nil {
		o.Logger.Warn(msg, "className", o.Envelope.ClassName, "methodName", o.Envelope.MethodName, "error", err)
	}
}
