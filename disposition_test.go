package amqp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

func deliveryForBatch(role encoding.Role, id uint32, settled bool, state DeliveryState) *Delivery {
	return &Delivery{
		link:           &Link{Role: role},
		id:             id,
		hasID:          true,
		locallySettled: settled,
		LocalState:     state,
	}
}

// Three consecutive accepted-and-settled deliveries on the same link
// collapse into a single run, the batching example spec.md borrows
// directly from §4.6.
func TestBatchDispositionsCollapsesContiguousRun(t *testing.T) {
	ds := []*Delivery{
		deliveryForBatch(encoding.RoleReceiver, 1, true, &Accepted{}),
		deliveryForBatch(encoding.RoleReceiver, 2, true, &Accepted{}),
		deliveryForBatch(encoding.RoleReceiver, 3, true, &Accepted{}),
	}

	runs := batchDispositions(ds)

	want := []dispositionRun{
		{role: encoding.RoleReceiver, first: 1, last: 3, settled: true, state: &Accepted{}},
	}
	if diff := cmp.Diff(want, runs, cmp.AllowUnexported(dispositionRun{}), cmp.Comparer(func(a, b DeliveryState) bool {
		return stateEqual(a, b)
	})); diff != "" {
		t.Fatalf("batchDispositions() mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchDispositionsBreaksOnGapInDeliveryID(t *testing.T) {
	ds := []*Delivery{
		deliveryForBatch(encoding.RoleReceiver, 1, true, &Accepted{}),
		deliveryForBatch(encoding.RoleReceiver, 3, true, &Accepted{}),
	}

	runs := batchDispositions(ds)
	require.Len(t, runs, 2)
	require.Equal(t, uint32(1), runs[0].first)
	require.Equal(t, uint32(1), runs[0].last)
	require.Equal(t, uint32(3), runs[1].first)
	require.Equal(t, uint32(3), runs[1].last)
}

func TestBatchDispositionsBreaksOnDifferingOutcome(t *testing.T) {
	ds := []*Delivery{
		deliveryForBatch(encoding.RoleReceiver, 1, true, &Accepted{}),
		deliveryForBatch(encoding.RoleReceiver, 2, true, &Released{}),
	}

	runs := batchDispositions(ds)
	require.Len(t, runs, 2)
	_, firstIsAccepted := runs[0].state.(*Accepted)
	require.True(t, firstIsAccepted)
	_, secondIsReleased := runs[1].state.(*Released)
	require.True(t, secondIsReleased)
}

func TestBatchDispositionsBreaksOnRoleChange(t *testing.T) {
	ds := []*Delivery{
		deliveryForBatch(encoding.RoleReceiver, 1, true, &Accepted{}),
		deliveryForBatch(encoding.RoleSender, 2, true, &Accepted{}),
	}

	runs := batchDispositions(ds)
	require.Len(t, runs, 2)
}

func TestBatchDispositionsSkipsDeliveriesWithoutAnID(t *testing.T) {
	ds := []*Delivery{
		{link: &Link{Role: encoding.RoleReceiver}, hasID: false},
		deliveryForBatch(encoding.RoleReceiver, 1, true, &Accepted{}),
	}

	runs := batchDispositions(ds)
	require.Len(t, runs, 1)
	require.Equal(t, uint32(1), runs[0].first)
}
