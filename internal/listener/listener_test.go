package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madjin/crypto-superchat/internal/models"
)

const (
	recipient = "Wallet1111"
	ata       = "TokenAcct111"
	mint      = "MintAAA"
)

type feedResult struct {
	page []models.EnhancedTransaction
	err  error
}

type fakeFeed struct {
	mu      sync.Mutex
	results []feedResult
	befores []string
}

func (f *fakeFeed) FetchTransactions(ctx context.Context, address, before string, limit int) ([]models.EnhancedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.befores = append(f.befores, before)
	if len(f.results) == 0 {
		return nil, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.page, r.err
}

func (f *fakeFeed) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.befores...)
}

type fakeResolver struct {
	account string
	err     error
	calls   int
}

func (r *fakeResolver) ResolveTokenAccount(ctx context.Context, owner, m string) (string, error) {
	r.calls++
	return r.account, r.err
}

type collector struct {
	mu   sync.Mutex
	got  []models.Candidate
	fail error
}

func (c *collector) forward(ctx context.Context, cand models.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.got = append(c.got, cand)
	return nil
}

func strPtr(s string) *string { return &s }

func transfer(to, m string, amount int64) models.TokenTransfer {
	return models.TokenTransfer{FromUserAccount: "Sender", ToUserAccount: to, Mint: m, TokenAmount: decimal.NewFromInt(amount)}
}

func newListener(feed TransactionFeed, res AccountResolver, c *collector) *Listener {
	return New(feed, res, c.forward, Options{Recipient: recipient, Mint: mint, PageLimit: 50}, nil)
}

func TestPollOnceExtractsQualifyingTransfers(t *testing.T) {
	page := []models.EnhancedTransaction{
		{ // 直接转到主地址
			Signature:      "s1",
			TokenTransfers: []models.TokenTransfer{transfer(recipient, mint, 5000)},
			Memos:          []interface{}{" thanks! "},
		},
		{ // 其他 mint
			Signature:      "s2",
			TokenTransfers: []models.TokenTransfer{transfer(recipient, "OtherMint", 10)},
			Memos:          []interface{}{"wrong token"},
		},
		{ // 转到关联代币账户，使用 memo 字段
			Signature:      "s3",
			TokenTransfers: []models.TokenTransfer{transfer("Elsewhere", mint, 1), transfer(ata, mint, 250)},
			Memo:           strPtr("via ata"),
		},
		{ // 没有 memo 不产生候选
			Signature:      "s4",
			TokenTransfers: []models.TokenTransfer{transfer(recipient, mint, 99)},
		},
		{ // 同一交易多笔符合条件的转账只取第一笔
			Signature:      "s5",
			TokenTransfers: []models.TokenTransfer{transfer(recipient, mint, 7), transfer(ata, mint, 8)},
			Memos:          []interface{}{"double"},
		},
	}
	feed := &fakeFeed{results: []feedResult{{page: page}}}
	c := &collector{}
	l := newListener(feed, &fakeResolver{account: ata}, c)

	require.NoError(t, l.pollOnce(context.Background()))

	require.Len(t, c.got, 3)
	assert.Equal(t, "s1", c.got[0].Signature)
	assert.Equal(t, "thanks!", c.got[0].Memo)
	assert.Equal(t, models.CandidateTypeMemo, c.got[0].Type)
	assert.Equal(t, "Sender", c.got[0].From)
	assert.True(t, c.got[0].Amount.Equal(decimal.NewFromInt(5000)))

	assert.Equal(t, "s3", c.got[1].Signature)
	assert.Equal(t, "via ata", c.got[1].Memo)
	assert.True(t, c.got[1].Amount.Equal(decimal.NewFromInt(250)))

	assert.Equal(t, "s5", c.got[2].Signature)
	assert.True(t, c.got[2].Amount.Equal(decimal.NewFromInt(7)))

	assert.Equal(t, "s5", l.Cursor())
}

func TestPollOnceCursorAdvance(t *testing.T) {
	feed := &fakeFeed{results: []feedResult{
		{page: []models.EnhancedTransaction{{Signature: "a"}, {Signature: "b"}}},
		{page: nil},
		{page: []models.EnhancedTransaction{{Signature: "c"}}},
	}}
	l := newListener(feed, &fakeResolver{}, &collector{})
	ctx := context.Background()

	require.NoError(t, l.pollOnce(ctx))
	assert.Equal(t, "b", l.Cursor())
	require.NoError(t, l.pollOnce(ctx))
	assert.Equal(t, "b", l.Cursor(), "empty page keeps the cursor")
	require.NoError(t, l.pollOnce(ctx))
	assert.Equal(t, "c", l.Cursor())

	assert.Equal(t, []string{"", "b", "b"}, feed.calls())
}

func TestResolverFailureFallsBackToPrimaryAddress(t *testing.T) {
	page := []models.EnhancedTransaction{
		{Signature: "s1", TokenTransfers: []models.TokenTransfer{transfer(ata, mint, 10)}, Memos: []interface{}{"to ata"}},
		{Signature: "s2", TokenTransfers: []models.TokenTransfer{transfer(recipient, mint, 10)}, Memos: []interface{}{"to wallet"}},
	}
	feed := &fakeFeed{results: []feedResult{{page: page}, {page: nil}}}
	res := &fakeResolver{err: errors.New("rpc 429")}
	c := &collector{}
	l := newListener(feed, res, c)

	require.NoError(t, l.pollOnce(context.Background()))
	require.Len(t, c.got, 1)
	assert.Equal(t, "s2", c.got[0].Signature)
	assert.Empty(t, l.TokenAccount())

	// 未解析时下一轮再次尝试
	res.err = nil
	res.account = ata
	require.NoError(t, l.pollOnce(context.Background()))
	assert.Equal(t, ata, l.TokenAccount())
	assert.Equal(t, 2, res.calls)

	// 解析成功后不再调用
	require.NoError(t, l.pollOnce(context.Background()))
	assert.Equal(t, 2, res.calls)
}

func TestEmptyTokenAccountNeverMatchesEmptyDestination(t *testing.T) {
	page := []models.EnhancedTransaction{
		{Signature: "s1", TokenTransfers: []models.TokenTransfer{transfer("", mint, 10)}, Memos: []interface{}{"burn?"}},
	}
	feed := &fakeFeed{results: []feedResult{{page: page}}}
	c := &collector{}
	l := newListener(feed, &fakeResolver{}, c)

	require.NoError(t, l.pollOnce(context.Background()))
	assert.Empty(t, c.got)
}

func TestForwardFailureKeepsCursor(t *testing.T) {
	page := []models.EnhancedTransaction{
		{Signature: "s1", TokenTransfers: []models.TokenTransfer{transfer(recipient, mint, 10)}, Memos: []interface{}{"hi"}},
	}
	feed := &fakeFeed{results: []feedResult{{page: page}}}
	c := &collector{fail: errors.New("database is locked")}
	l := newListener(feed, &fakeResolver{}, c)

	err := l.pollOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "", l.Cursor())
}

func TestRunBacksOffOnErrorAndPreservesState(t *testing.T) {
	feed := &fakeFeed{results: []feedResult{
		{page: []models.EnhancedTransaction{{Signature: "p1"}}},
		{err: errors.New("502 bad gateway")},
		{page: []models.EnhancedTransaction{{Signature: "p2"}}},
	}}
	res := &fakeResolver{account: ata}
	l := New(feed, res, (&collector{}).forward, Options{
		Recipient:    recipient,
		Mint:         mint,
		PollInterval: 3 * time.Second,
		ErrorBackoff: 5 * time.Second,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		if len(waits) == 3 {
			cancel()
			return false
		}
		return true
	}

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}

	assert.Equal(t, []time.Duration{3 * time.Second, 5 * time.Second, 3 * time.Second}, waits)
	assert.Equal(t, []string{"", "p1", "p1"}, feed.calls())
	assert.Equal(t, "p2", l.Cursor())
	assert.Equal(t, ata, l.TokenAccount())
	assert.Equal(t, 1, res.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(&fakeFeed{}, &fakeResolver{}, (&collector{}).forward, Options{
		Recipient:    recipient,
		Mint:         mint,
		PollInterval: time.Hour,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}
