package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

// TransactionFeed 按地址分页拉取增强交易，before 为空时返回最新一页
type TransactionFeed interface {
	FetchTransactions(ctx context.Context, address, before string, limit int) ([]models.EnhancedTransaction, error)
}

// AccountResolver 查询钱包在某个 mint 下的关联代币账户，没有时返回空字符串
type AccountResolver interface {
	ResolveTokenAccount(ctx context.Context, owner, mint string) (string, error)
}

// ForwardFunc 把提取到的打赏交给审核流程
type ForwardFunc func(ctx context.Context, c models.Candidate) error

type Options struct {
	Recipient    string
	Mint         string
	PageLimit    int
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// Listener 轮询收款地址的交易并转发符合条件的代币转账
type Listener struct {
	feed     TransactionFeed
	resolver AccountResolver
	forward  ForwardFunc
	opts     Options
	log      *utils.Logger

	before       string // 分页游标：上一页最后一笔交易的签名
	tokenAccount string // 收款地址的关联代币账户，解析成功后缓存
	sleep        func(ctx context.Context, d time.Duration) bool
}

func New(feed TransactionFeed, resolver AccountResolver, forward ForwardFunc, opts Options, log *utils.Logger) *Listener {
	if opts.PageLimit <= 0 {
		opts.PageLimit = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	return &Listener{
		feed:     feed,
		resolver: resolver,
		forward:  forward,
		opts:     opts,
		log:      log.OrDefault().Named("listener"),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run 持续轮询直到 ctx 取消。单轮失败只记录日志并等待 ErrorBackoff 后重试，游标和已解析的账户保留。
func (l *Listener) Run(ctx context.Context) {
	l.log.Info("开始监听地址 %s (mint %s)", utils.ShortAddress(l.opts.Recipient), utils.ShortAddress(l.opts.Mint))
	for {
		wait := l.opts.PollInterval
		if err := l.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			pollsTotal.WithLabelValues("error").Inc()
			l.log.Warn("轮询失败，%s 后重试: %v", l.opts.ErrorBackoff, err)
			wait = l.opts.ErrorBackoff
		} else {
			pollsTotal.WithLabelValues("ok").Inc()
		}
		if !l.sleep(ctx, wait) {
			break
		}
	}
	l.log.Info("监听器停止")
}

// pollOnce 执行一轮：解析关联账户、拉取一页、转发、推进游标
func (l *Listener) pollOnce(ctx context.Context) error {
	if l.tokenAccount == "" {
		acct, err := l.resolver.ResolveTokenAccount(ctx, l.opts.Recipient, l.opts.Mint)
		switch {
		case err != nil:
			l.log.Warn("解析关联代币账户失败，本轮只匹配主地址: %v", err)
		case acct == "":
			l.log.Debug("地址 %s 暂无该代币账户", utils.ShortAddress(l.opts.Recipient))
		default:
			l.tokenAccount = acct
			l.log.Info("关联代币账户: %s", acct)
		}
	}

	page, err := l.feed.FetchTransactions(ctx, l.opts.Recipient, l.before, l.opts.PageLimit)
	if err != nil {
		return fmt.Errorf("拉取交易失败: %w", err)
	}

	for _, c := range l.extractCandidates(page) {
		if err := l.forward(ctx, c); err != nil {
			return fmt.Errorf("转发交易 %s 失败: %w", c.Signature, err)
		}
		candidatesForwarded.Inc()
	}

	if len(page) > 0 {
		l.before = page[len(page)-1].Signature
	}
	return nil
}

// extractCandidates 按上游返回顺序提取，每笔交易最多一个
func (l *Listener) extractCandidates(page []models.EnhancedTransaction) []models.Candidate {
	var out []models.Candidate
	for i := range page {
		tx := &page[i]
		for _, t := range tx.TokenTransfers {
			if !l.qualifies(t) {
				continue
			}
			// 只看第一笔符合条件的转账
			if memo := tx.ExtractMemo(); memo != "" {
				out = append(out, models.Candidate{
					Type:      models.CandidateTypeMemo,
					Memo:      memo,
					Amount:    t.TokenAmount,
					Signature: tx.Signature,
					From:      t.FromUserAccount,
				})
			}
			break
		}
	}
	return out
}

func (l *Listener) qualifies(t models.TokenTransfer) bool {
	if t.Mint != l.opts.Mint {
		return false
	}
	if t.ToUserAccount == l.opts.Recipient {
		return true
	}
	return l.tokenAccount != "" && t.ToUserAccount == l.tokenAccount
}

// Cursor 当前分页游标
func (l *Listener) Cursor() string {
	return l.before
}

// TokenAccount 已解析的关联代币账户
func (l *Listener) TokenAccount() string {
	return l.tokenAccount
}
