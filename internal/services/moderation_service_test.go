package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/db"
	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/models"
)

var dbSeq atomic.Int64

type published struct {
	ch  hub.Channel
	msg interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(ch hub.Channel, msg interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{ch: ch, msg: msg})
}

func (p *recordingPublisher) on(ch hub.Channel) []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []interface{}
	for _, m := range p.msgs {
		if m.ch == ch {
			out = append(out, m.msg)
		}
	}
	return out
}

func newTestStore(t *testing.T) *db.EventStore {
	t.Helper()
	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Init(context.Background(), conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	var mu sync.Mutex
	cur := time.Unix(1_700_000_000, 0)
	return db.NewEventStore(conn, db.NewContentFilter(conn)).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	})
}

func newTestEngine(t *testing.T, auto bool) (*ModerationService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewModerationService(newTestStore(t), pub, auto, nil), pub
}

func candidate(sig, memo string, amount int64) models.Candidate {
	return models.Candidate{
		Type:      models.CandidateTypeMemo,
		Signature: sig,
		From:      "w1",
		Amount:    decimal.NewFromInt(amount),
		Memo:      memo,
	}
}

func TestEndToEndManualApproval(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, false)

	ev, err := m.OnCandidate(ctx, candidate("sig1", "thanks!", 5000))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ev.Status)

	pending, err := m.PendingEvents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sig1", pending[0].ID)
	assert.Equal(t, models.TierMid, pending[0].Tier)
	assert.Equal(t, models.StatusPending, pending[0].Status)
	assert.False(t, pending[0].AutoFiltered)

	dash := pub.on(hub.Dashboard)
	require.Len(t, dash, 1)
	assert.Equal(t, models.MsgNewEvent, dash[0].(models.EventMessage).Type)
	assert.Empty(t, pub.on(hub.Overlay))

	approved, err := m.Approve(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)
	assert.GreaterOrEqual(t, *approved.DecidedAt, approved.CreatedAt)

	pending, err = m.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	overlay := pub.on(hub.Overlay)
	require.Len(t, overlay, 1)
	show := overlay[0].(models.EventMessage)
	assert.Equal(t, models.MsgShowDonation, show.Type)
	assert.Equal(t, "sig1", show.Event.ID)

	dash = pub.on(hub.Dashboard)
	require.Len(t, dash, 2)
	assert.Equal(t, models.EventIDMessage{Type: models.MsgEventApproved, EventID: "sig1"}, dash[1])
}

func TestAutoModeApprovesCleanCandidates(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, true)

	ev, err := m.OnCandidate(ctx, candidate("sig-auto", "gm", 20000))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, ev.Status)
	assert.Equal(t, models.TierHigh, ev.Tier)

	overlay := pub.on(hub.Overlay)
	require.Len(t, overlay, 1)
	assert.Equal(t, "sig-auto", overlay[0].(models.EventMessage).Event.ID)

	pending, err := m.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAutoModeKeepsFilteredForReview(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, true)

	ev, err := m.OnCandidate(ctx, candidate("sig-bad", "this is a SCAM", 10))
	require.NoError(t, err)
	assert.True(t, ev.AutoFiltered)
	assert.Equal(t, models.StatusPending, ev.Status)
	assert.Empty(t, pub.on(hub.Overlay))
	assert.Len(t, pub.on(hub.Dashboard), 1)
}

func TestAutoModeIsNotRetroactive(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, false)

	_, err := m.OnCandidate(ctx, candidate("before", "hello", 1))
	require.NoError(t, err)

	m.SetAutoMode(true)
	assert.True(t, m.AutoMode())

	_, err = m.OnCandidate(ctx, candidate("after", "hello", 1))
	require.NoError(t, err)

	pending, err := m.PendingEvents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "before", pending[0].ID)
	assert.Len(t, pub.on(hub.Overlay), 1)
}

func TestDuplicateCandidateBroadcastsOnce(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := m.OnCandidate(ctx, candidate("dup", "hi", 100))
			assert.NoError(t, err)
			assert.Equal(t, "dup", ev.ID)
		}()
	}
	wg.Wait()

	_, err := m.OnCandidate(ctx, candidate("dup", "hi", 100))
	require.NoError(t, err)
	assert.Len(t, pub.on(hub.Dashboard), 1)
}

func TestDecideErrors(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, false)

	_, err := m.Approve(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Empty(t, pub.msgs)

	_, err = m.OnCandidate(ctx, candidate("sig2", "yo", 1))
	require.NoError(t, err)
	_, err = m.Skip(ctx, "sig2")
	require.NoError(t, err)
	assert.Equal(t, models.EventIDMessage{Type: models.MsgEventSkipped, EventID: "sig2"}, pub.on(hub.Dashboard)[1])
	assert.Empty(t, pub.on(hub.Overlay))

	ev, err := m.Approve(ctx, "sig2")
	assert.True(t, IsConflict(err))
	require.NotNil(t, ev)
	assert.Equal(t, models.StatusSkipped, ev.Status)
	assert.Empty(t, pub.on(hub.Overlay))

	_, err = m.Decide(ctx, "sig2", "delete")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNegativeAmountRejected(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, true)

	_, err := m.OnCandidate(ctx, candidate("neg", "refund", -5))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, ErrNegativeAmount)
	assert.Empty(t, pub.msgs)

	pending, err := m.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 监听器不会因为非法候选卡住游标
	assert.NoError(t, forwardTo(m, nil)(ctx, candidate("neg", "refund", -5)))
	assert.Empty(t, pub.msgs)

	ev, err := m.OnCandidate(ctx, candidate("zero", "gm", 0))
	require.NoError(t, err)
	assert.Equal(t, models.TierLow, ev.Tier)
}

func TestDecideDistinguishesMissingIDFromBadAction(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestEngine(t, false)

	_, err := m.Decide(ctx, "  ", models.CmdApprove)
	assert.ErrorIs(t, err, ErrMissingEventID)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = m.Decide(ctx, "sig", "burn")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.NotErrorIs(t, err, ErrMissingEventID)
}

func TestToggleAndSetAutoModePublish(t *testing.T) {
	m, pub := newTestEngine(t, false)

	assert.True(t, m.ToggleAutoMode())
	assert.False(t, m.ToggleAutoMode())
	m.SetAutoMode(true)

	assert.Equal(t, []interface{}{
		models.AutoModeMessage{Type: models.MsgAutoModeChanged, AutoMode: true},
		models.AutoModeMessage{Type: models.MsgAutoModeChanged, AutoMode: false},
		models.AutoModeMessage{Type: models.MsgAutoModeChanged, AutoMode: true},
	}, pub.on(hub.Dashboard))
}

func TestClearAllNotifiesDashboard(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestEngine(t, false)
	for i := 0; i < 3; i++ {
		_, err := m.OnCandidate(ctx, candidate(fmt.Sprintf("c%d", i), "x", 1))
		require.NoError(t, err)
	}

	n, err := m.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	dash := pub.on(hub.Dashboard)
	assert.Equal(t, models.EventsClearedMessage{Type: models.MsgEventsCleared, Count: 3}, dash[len(dash)-1])
}

func TestDashboardSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestEngine(t, true)
	_, err := m.OnCandidate(ctx, candidate("flagged", "rug pull", 1))
	require.NoError(t, err)

	snap, err := m.DashboardSnapshot(ctx)
	require.NoError(t, err)
	first := snap.(models.DashboardInitMessage)
	assert.Equal(t, models.MsgDashboardInit, first.Type)
	assert.True(t, first.AutoMode)
	require.Len(t, first.PendingEvents, 1)
	assert.Equal(t, "flagged", first.PendingEvents[0].ID)
}

func TestHandleDashboardCommand(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestEngine(t, false)
	_, err := m.OnCandidate(ctx, candidate("cmd1", "hey", 1))
	require.NoError(t, err)

	require.NoError(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdApprove, EventID: "cmd1"}))
	assert.True(t, IsNotFound(m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdSkip, EventID: "nope"})))

	require.NoError(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdToggleAuto}))
	assert.True(t, m.AutoMode())

	off := false
	require.NoError(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdSetAuto, AutoMode: &off}))
	assert.False(t, m.AutoMode())
	assert.ErrorIs(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdSetAuto}), ErrInvalidRequest)

	require.NoError(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: models.CmdClear}))
	assert.ErrorIs(t, m.HandleDashboardCommand(ctx, models.DashboardCommand{Type: "reboot"}), ErrUnknownCommand)
}

func TestListenerStartDisabledWithoutCredentials(t *testing.T) {
	m, _ := newTestEngine(t, false)
	cfg := &config.Config{}
	cfg.Listener.Recipient = "Wallet"
	assert.False(t, ListenerStart(context.Background(), cfg, m, nil))

	cfg = &config.Config{}
	cfg.Helius.APIKey = "key"
	assert.False(t, ListenerStart(context.Background(), cfg, m, nil))
}
