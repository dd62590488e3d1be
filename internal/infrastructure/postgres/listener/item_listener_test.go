package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keepmore/internal/domain/item"
)

func TestParsePayload(t *testing.T) {
	linked, err := parsePayload(`{"id":"5d0c7f3e-1111-4a5b-9c1d-000000000001","kind":"investments"}`)
	require.NoError(t, err)
	assert.Equal(t, "5d0c7f3e-1111-4a5b-9c1d-000000000001", linked.ID)
	assert.Equal(t, item.KindInvestments, linked.Kind)

	linked, err = parsePayload(`{"id":"row-1","kind":""}`)
	require.NoError(t, err)
	assert.Equal(t, item.KindBanking, linked.Kind)
}

func TestParsePayload_Invalid(t *testing.T) {
	for _, extra := range []string{``, `not json`, `{"kind":"banking"}`, `{"id":"row-1","kind":"crypto"}`} {
		_, err := parsePayload(extra)
		assert.Error(t, err, extra)
	}
}

func TestDispatch_RunsHandler(t *testing.T) {
	got := make(chan LinkedItem, 1)
	l := NewItemListener("", func(ctx context.Context, linked LinkedItem) {
		got <- linked
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	l.dispatch(ctx, `{"id":"row-9","kind":"banking"}`)
	cancel()
	l.inFlight.Wait()

	linked := <-got
	assert.Equal(t, "row-9", linked.ID)
	assert.Equal(t, item.KindBanking, linked.Kind)
}

func TestDispatch_IgnoresBadPayload(t *testing.T) {
	l := NewItemListener("", func(ctx context.Context, linked LinkedItem) {
		t.Error("handler should not run")
	}, zap.NewNop())

	l.dispatch(context.Background(), `{}`)
	l.inFlight.Wait()
}
