package services

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

const (
	MintSOL   = "So11111111111111111111111111111111111111112"
	MintAI16Z = "HeLp6NuQkmYB4pYWo2zYs22mESHXPQYzXbB8n4V98jwC"
	MintUSDC  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintBONK  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintUSDT  = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintWETH  = "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs"
)

// PopularMints /api/tokens/popular 返回的顺序
var PopularMints = []string{MintSOL, MintAI16Z, MintUSDC, MintBONK, MintUSDT, MintWETH}

func strRef(s string) *string { return &s }

var wellKnownTokens = map[string]models.TokenMetadata{
	MintSOL: {
		Mint:     MintSOL,
		Symbol:   "SOL",
		Name:     strRef("Solana"),
		Decimals: 9,
		Logo:     strRef("https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/So11111111111111111111111111111111111111112/logo.png"),
	},
	MintAI16Z: {
		Mint:     MintAI16Z,
		Symbol:   "AI16Z",
		Name:     strRef("ai16z"),
		Decimals: 6,
		Logo:     strRef("https://arweave.net/yPPLSRJCJBpj0teCRvwJKYNj1Z5K7vCLZfqxjWaKpjE"),
	},
	MintUSDC: {
		Mint:     MintUSDC,
		Symbol:   "USDC",
		Name:     strRef("USD Coin"),
		Decimals: 6,
		Logo:     strRef("https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v/logo.png"),
	},
}

// AssetFetcher 远程查询代币元数据，不存在时返回 nil
type AssetFetcher interface {
	GetAsset(ctx context.Context, mint string) (*models.TokenMetadata, error)
}

// TokenService 代币元数据查询，内置常用代币，其余走 DAS 并缓存
type TokenService struct {
	fetcher AssetFetcher
	cache   *expirable.LRU[string, models.TokenMetadata]
	log     *utils.Logger
}

func NewTokenService(fetcher AssetFetcher, log *utils.Logger) *TokenService {
	return &TokenService{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, models.TokenMetadata](512, nil, time.Hour),
		log:     log.OrDefault().Named("token"),
	}
}

// Metadata 查询单个 mint 的元数据
func (s *TokenService) Metadata(ctx context.Context, mint string) (*models.TokenMetadata, error) {
	if !utils.IsValidAddress(mint) {
		return nil, ErrInvalidRequest
	}
	if md, ok := wellKnownTokens[mint]; ok {
		return &md, nil
	}
	if md, ok := s.cache.Get(mint); ok {
		return &md, nil
	}

	md, err := s.fetcher.GetAsset(ctx, mint)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, ErrTokenNotFound
	}
	s.cache.Add(mint, *md)
	return md, nil
}

// Popular 依次查询 PopularMints，查询失败的跳过
func (s *TokenService) Popular(ctx context.Context) []models.TokenMetadata {
	tokens := make([]models.TokenMetadata, 0, len(PopularMints))
	for _, mint := range PopularMints {
		md, err := s.Metadata(ctx, mint)
		if err != nil {
			s.log.Debug("跳过 %s: %v", mint, err)
			continue
		}
		tokens = append(tokens, *md)
	}
	return tokens
}
