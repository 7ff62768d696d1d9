package events

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestLogListPagesBySequence(t *testing.T) {
	log := NewLog(10)
	for i := 0; i < 5; i++ {
		log.Emit(RemittancePaused{})
	}

	all := log.List(0, 0)
	require.Len(t, all, 5)
	require.Equal(t, uint64(1), all[0].Seq)
	require.Equal(t, uint64(5), all[4].Seq)

	page := log.List(2, 2)
	require.Len(t, page, 2)
	require.Equal(t, uint64(3), page[0].Seq)
	require.Equal(t, uint64(4), page[1].Seq)
}

func TestLogDropsOldestBeyondLimit(t *testing.T) {
	log := NewLog(3)
	for i := 0; i < 5; i++ {
		log.Emit(RemittanceUnpaused{})
	}
	records := log.List(0, 0)
	require.Len(t, records, 3)
	require.Equal(t, uint64(3), records[0].Seq)
}

func TestBufferFlushesOnlyOnce(t *testing.T) {
	var buf Buffer
	log := NewLog(0)

	buf.Emit(RemittancePaused{})
	buf.Emit(RemittanceUnpaused{})
	require.Equal(t, 2, buf.Len())

	buf.Flush(log)
	buf.Flush(log)
	require.Len(t, log.List(0, 0), 2)

	buf.Emit(RemittancePaused{})
	buf.Reset()
	buf.Flush(log)
	require.Len(t, log.List(0, 0), 2)
}

func TestWithdrawnEventAttributes(t *testing.T) {
	evt := RemittanceWithdrawn{
		Recipient: [20]byte{1},
		Amount:    uint256.NewInt(20),
		Key:       [32]byte{0xab},
	}
	rendered := evt.Event()
	require.Equal(t, TypeRemittanceWithdrawn, rendered.Type)
	require.Equal(t, "20", rendered.Attributes["amount"])
	require.Contains(t, rendered.Attributes["recipient"], "rmt1")
	require.Len(t, rendered.Attributes, 3)
}

func TestMultiSkipsNilEmitters(t *testing.T) {
	log := NewLog(0)
	Multi{nil, log, NoopEmitter{}}.Emit(RemittancePaused{})
	require.Len(t, log.List(0, 0), 1)
}
