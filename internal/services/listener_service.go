package services

import (
	"context"
	"errors"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/listener"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

// NewListener 用 Helius 交易流和 Solana RPC 组装监听器，候选打赏交给审核服务
func NewListener(cfg *config.Config, engine *ModerationService, log *utils.Logger) *listener.Listener {
	feed := NewHeliusService(cfg.Helius, log)
	resolver := NewSolanaService(cfg.Helius.RPCURL, cfg.Helius.APIKey)
	return listener.New(feed, resolver, forwardTo(engine, log), listener.Options{
		Recipient:    cfg.Listener.Recipient,
		Mint:         cfg.Listener.Mint,
		PageLimit:    cfg.Listener.PageLimit,
		PollInterval: cfg.Listener.PollInterval,
		ErrorBackoff: cfg.Listener.ErrorBackoff,
	}, log)
}

// forwardTo 非法候选直接丢弃，避免游标卡在同一页反复重试
func forwardTo(engine *ModerationService, log *utils.Logger) listener.ForwardFunc {
	log = log.OrDefault()
	return func(ctx context.Context, c models.Candidate) error {
		_, err := engine.OnCandidate(ctx, c)
		if errors.Is(err, ErrInvalidRequest) {
			log.Warn("丢弃非法打赏 %s: %v", c.Signature, err)
			return nil
		}
		return err
	}
}

// ListenerStart 在后台启动监听，ctx 取消时退出。缺少 api key 或收款地址时不启动，返回 false。
func ListenerStart(ctx context.Context, cfg *config.Config, engine *ModerationService, log *utils.Logger) bool {
	log = log.OrDefault()
	if !cfg.ListenerEnabled() {
		log.Warn("未配置 HELIUS_API_KEY 或 PRIZE_WALLET_ADDRESS，交易监听未启动")
		return false
	}
	l := NewListener(cfg, engine, log)
	go l.Run(ctx)
	return true
}
