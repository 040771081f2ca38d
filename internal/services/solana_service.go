package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/madjin/crypto-superchat/utils"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUpstream       = errors.New("upstream request failed")
	ErrTokenNotFound  = errors.New("token metadata not found")
	ErrUnknownCommand = errors.New("unknown command")
)

// SolanaService 通过 JSON-RPC 查询链上账户
type SolanaService struct {
	client *rpc.Client
}

func NewSolanaService(rpcURL, apiKey string) *SolanaService {
	return &SolanaService{client: rpc.New(rpcEndpoint(rpcURL, apiKey))}
}

// rpcEndpoint Helius RPC 通过查询参数携带 api-key
func rpcEndpoint(rpcURL, apiKey string) string {
	if apiKey == "" {
		return rpcURL
	}
	sep := "?"
	if strings.Contains(rpcURL, "?") {
		sep = "&"
	}
	return rpcURL + sep + "api-key=" + url.QueryEscape(apiKey)
}

// ResolveTokenAccount 返回 owner 在 mint 下的第一个代币账户，没有时返回空字符串
func (s *SolanaService) ResolveTokenAccount(ctx context.Context, owner, mint string) (string, error) {
	ownerKey, err := utils.ParseAddress(owner)
	if err != nil {
		return "", fmt.Errorf("%w: owner: %v", ErrInvalidRequest, err)
	}
	mintKey, err := utils.ParseAddress(mint)
	if err != nil {
		return "", fmt.Errorf("%w: mint: %v", ErrInvalidRequest, err)
	}

	out, err := s.client.GetTokenAccountsByOwner(ctx, ownerKey, &rpc.GetTokenAccountsConfig{
		Mint: &mintKey,
	}, &rpc.GetTokenAccountsOpts{
		Encoding: solana.EncodingBase64,
	})
	if err != nil {
		return "", fmt.Errorf("%w: getTokenAccountsByOwner: %v", ErrUpstream, err)
	}
	if out == nil || len(out.Value) == 0 {
		return "", nil
	}
	return out.Value[0].Pubkey.String(), nil
}
