package amqp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

func TestTerminusCopyRoundTrip(t *testing.T) {
	src := &Terminus{
		Type:             TerminusSource,
		Address:          "orders",
		Durable:          encoding.DurabilityUnsettledState,
		ExpiryPolicy:     encoding.ExpirySessionEnd,
		Timeout:          30,
		Dynamic:          true,
		DistributionMode: encoding.DistributionModeCopy,
		DynamicNodeProperties: map[encoding.Symbol]interface{}{
			"supported-dist-modes": "copy",
		},
		Filter: map[encoding.Symbol]interface{}{
			"selector": "amqp.annotation.x-opt-offset > 100",
		},
		Outcomes:     []encoding.Symbol{"amqp:accepted:list", "amqp:rejected:list"},
		Capabilities: []encoding.Symbol{"queue"},
	}

	var dst Terminus
	dst.Copy(src)

	if diff := cmp.Diff(src, &dst); diff != "" {
		t.Fatalf("Copy() mismatch (-src +dst):\n%s", diff)
	}

	// Copy must be a deep copy: mutating the source's maps/slices
	// afterward must not be visible through dst (pn_terminus_copy's
	// whole point is decoupling from a still-mutable caller original).
	src.DynamicNodeProperties["supported-dist-modes"] = "move"
	src.Filter["selector"] = "changed"
	src.Outcomes[0] = "amqp:modified:list"
	src.Capabilities[0] = "topic"

	require.Equal(t, "copy", dst.DynamicNodeProperties["supported-dist-modes"])
	require.Equal(t, "amqp.annotation.x-opt-offset > 100", dst.Filter["selector"])
	require.Equal(t, encoding.Symbol("amqp:accepted:list"), dst.Outcomes[0])
	require.Equal(t, encoding.Symbol("queue"), dst.Capabilities[0])
}

func TestTerminusCopyNilMapsAndSlicesStayNil(t *testing.T) {
	src := &Terminus{Type: TerminusTarget, Address: "scratch"}

	var dst Terminus
	dst.Copy(src)

	require.Nil(t, dst.DynamicNodeProperties)
	require.Nil(t, dst.Filter)
	require.Len(t, dst.Outcomes, 0)
	require.Len(t, dst.Capabilities, 0)
}
