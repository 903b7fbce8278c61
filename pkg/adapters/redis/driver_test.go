package redis_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherdev/tether/pkg/adapters/redis"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports/tests"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// feed pushes a JSON-encoded frame onto the driver's inbound list, the
// way a device bridge would.
func feed(client *backend.Client, key string, f domain.Frame) error {
	data, err := json.Marshal(map[string]any{
		"encoding": string(f.Encoding),
		"offset":   f.Offset,
		"bits":     f.Bits,
		"text":     f.Text,
		"command":  f.Command,
		"args":     f.Args,
	})
	if err != nil {
		return err
	}
	return client.LPush(context.Background(), key+":in", data).Err()
}

func TestDriverContract(t *testing.T) {
	_, client := setup(t)
	driver := redis.NewFromClient(client, "dev/tiles")
	tests.ChannelDriverContractTest(t, driver, func(f domain.Frame) error {
		return feed(client, "dev/tiles", f)
	})
}

func TestWriteFrameLandsOnOutboundList(t *testing.T) {
	mr, client := setup(t)
	d := redis.NewFromClient(client, "dev/lights")
	ctx := context.Background()
	require.NoError(t, d.Open(ctx))
	defer d.Close()

	require.NoError(t, d.WriteFrame(ctx, domain.CommandFrame(2, "color", "black")))

	raw, err := mr.Lpop("dev/lights:out")
	require.NoError(t, err)
	var wf struct {
		Encoding string   `json:"encoding"`
		Offset   int      `json:"offset"`
		Command  string   `json:"command"`
		Args     []string `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &wf))
	assert.Equal(t, "command", wf.Encoding)
	assert.Equal(t, 2, wf.Offset)
	assert.Equal(t, "color", wf.Command)
	assert.Equal(t, []string{"black"}, wf.Args)
}

func TestReadFrameRejectsMalformedPayload(t *testing.T) {
	_, client := setup(t)
	d := redis.NewFromClient(client, "dev/tiles")
	ctx := context.Background()
	require.NoError(t, d.Open(ctx))
	defer d.Close()

	require.NoError(t, client.LPush(ctx, "dev/tiles:in", "not json").Err())
	_, err := d.ReadFrame(ctx)
	require.ErrorIs(t, err, domain.ErrDecode)
}

func TestOpenUnreachableInstance(t *testing.T) {
	mr, client := setup(t)
	d := redis.NewFromClient(client, "dev/tiles")
	mr.Close()
	require.ErrorIs(t, d.Open(context.Background()), domain.ErrChannelUnavailable)
}

func TestNewParsesLocation(t *testing.T) {
	d, err := redis.New("redis://localhost:6379/dev/tiles")
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/dev/tiles", d.Location())

	_, err = redis.New("localhost:6379/dev/tiles")
	require.ErrorIs(t, err, domain.ErrChannelUnavailable)

	_, err = redis.New("redis://localhost:6379")
	require.ErrorIs(t, err, domain.ErrChannelUnavailable)
}
