package coordinator

import (
	"context"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/operation"
)

type fakeOp struct {
	initErr error
	result  *operation.Result
	freed   bool
	inited  bool
}

func (f *fakeOp) Init() error {
	f.inited = true
	return f.initErr
}
func (f *fakeOp) Execute(ctx context.Context) *operation.Result { return f.result }
func (f *fakeOp) FreeResources()                                { f.freed = true }

func TestCoordinator_AllSucceedOrdered(t *testing.T) {
	op1 := &fakeOp{result: &operation.Result{Status: 0, Data: "a"}}
	op2 := &fakeOp{result: &operation.Result{Status: 0, Data: "b"}}

	c := &Coordinator{Operations: []operation.Operation{op1, op2}}
	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 || results[0].Data != "a" || results[1].Data != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if !op1.freed || !op2.freed {
		t.Fatalf("expected both operations freed")
	}
}

func TestCoordinator_InitFailureStopsAndFreesInitialized(t *testing.T) {
	op1 := &fakeOp{result: &operation.Result{Status: 0}}
	op2 := &fakeOp{initErr: errBoom}
	op3 := &fakeOp{}

	c := &Coordinator{Operations: []operation.Operation{op1, op2, op3}}
	results, err := c.Run(context.Background())
	if err == nil {
		t.Fatalf("expected top-level init error")
	}
	if results != nil {
		t.Fatalf("expected no per-operation results on init failure")
	}
	if !op1.freed {
		t.Fatalf("expected op1 (already initialised) to be freed")
	}
	if op3.inited {
		t.Fatalf("expected op3 to never be initialised")
	}
}

func TestCoordinator_ExecuteNeverStopsOnPerOperationFailure(t *testing.T) {
	op1 := &fakeOp{result: &operation.Result{Status: 0}}
	op2 := &fakeOp{result: &operation.Result{Status: -1, Data: "boom"}}
	op3 := &fakeOp{result: &operation.Result{Status: 0}}

	c := &Coordinator{Operations: []operation.Operation{op1, op2, op3}}
	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 || results[1].Status != -1 {
		t.Fatalf("expected all 3 results with op2 failing, got %+v", results)
	}
	if !op3.inited {
		t.Fatalf("expected op3 to still run despite op2's failure")
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
