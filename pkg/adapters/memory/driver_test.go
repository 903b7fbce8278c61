package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherdev/tether/pkg/adapters/memory"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports/tests"
)

func TestDriverContract(t *testing.T) {
	driver := memory.NewDriver("mem://contract")
	tests.ChannelDriverContractTest(t, driver, driver.Push)
}

func TestReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	d := memory.NewDriver("mem://reopen")

	require.NoError(t, d.Open(ctx))
	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Push(domain.BitFrame(0, true)), domain.ErrChannelClosed)

	require.NoError(t, d.Open(ctx))
	require.NoError(t, d.Push(domain.BitFrame(0, true)))
	f, err := d.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EncodingBits, f.Encoding)
}

func TestInjectedFailures(t *testing.T) {
	ctx := context.Background()
	d := memory.NewDriver("mem://faulty")

	d.FailOpen(true)
	require.ErrorIs(t, d.Open(ctx), domain.ErrChannelUnavailable)
	d.FailOpen(false)
	require.NoError(t, d.Open(ctx))

	d.FailWrites(true)
	require.ErrorIs(t, d.WriteFrame(ctx, domain.TextFrame(0, "x")), domain.ErrChannelWrite)
	d.FailWrites(false)
	require.NoError(t, d.WriteFrame(ctx, domain.TextFrame(0, "x")))

	require.Len(t, d.Writes(), 1)
	d.Reset()
	assert.Empty(t, d.Writes())
}

func TestHubSharesDriversByLocation(t *testing.T) {
	hub := memory.NewHub()
	factory := hub.Factory()

	drv, err := factory(domain.BindingConfig{ID: "tiles", Location: "mem://tiles"})
	require.NoError(t, err)
	require.NoError(t, drv.Open(context.Background()))

	// Feeding by location reaches the driver the factory handed out.
	require.NoError(t, hub.Feed("mem://tiles", domain.BitFrame(0, true)))
	f, err := drv.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, f.Bits)

	same, ok := hub.Driver("mem://tiles")
	require.True(t, ok)
	assert.Same(t, drv, same)

	_, ok = hub.Driver("mem://unknown")
	assert.False(t, ok)
}
