package operation

import (
	"context"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

type fakeRegistry struct {
	ctor RPCConstructor
}

func (r *fakeRegistry) Lookup(className string) (RPCConstructor, bool) {
	if className == "Widgets" {
		return r.ctor, true
	}
	return nil, false
}

type fakeRPCObject struct {
	invokeCalled bool
	freed        bool
}

func (f *fakeRPCObject) Invoke(ctx context.Context, methodName string, data any) (any, error) {
	f.invokeCalled = true
	return map[string]any{"method": methodName}, nil
}

func (f *fakeRPCObject) FreeResources() error {
	f.freed = true
	return nil
}

func TestRPCOperation_NoClassNameEchoesData(t *testing.T) {
	op := &RPCOperation{Envelope: &envelope.Operation{Kind: envelope.KindRPC, Data: map[string]any{"x": 1}}}
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	result := op.Execute(context.Background())
	if result.Status != 0 {
		t.Fatalf("expected status 0, got %d", result.Status)
	}
	data, ok := result.Data.(map[string]any)
	if !ok || data["x"] != 1 {
		t.Fatalf("expected echoed data, got %v", result.Data)
	}
}

func TestRPCOperation_MethodNameDispatch(t *testing.T) {
	obj := &fakeRPCObject{}
	registry := &fakeRegistry{ctor: func(data any) (any, error) { return obj, nil }}

	op := &RPCOperation{
		Envelope: &envelope.Operation{Kind: envelope.KindRPC, ClassName: "Widgets", MethodName: "ping", Data: map[string]any{}},
		Registry: registry,
	}
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	result := op.Execute(context.Background())
	if result.Status != 0 {
		t.Fatalf("expected status 0, got %d", result.Status)
	}
	if !obj.invokeCalled {
		t.Fatalf("expected Invoke to be called")
	}

	op.FreeResources()
	if !obj.freed {
		t.Fatalf("expected FreeResources to be called")
	}
}

func TestRPCOperation_UnregisteredClassNameEchoes(t *testing.T) {
	registry := &fakeRegistry{}
	op := &RPCOperation{
		Envelope: &envelope.Operation{Kind: envelope.KindRPC, ClassName: "Ghost", Data: "hello"},
		Registry: registry,
	}
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	result := op.Execute(context.Background())
	if result.Status != 0 || result.Data != "hello" {
		t.Fatalf("expected echoed data for unregistered class, got %+v", result)
	}
}
