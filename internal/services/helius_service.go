package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

// HeliusService 增强交易 REST 接口和 DAS 资产查询
type HeliusService struct {
	apiBase string
	rpcURL  string
	apiKey  string
	client  *retryablehttp.Client
	log     *utils.Logger
}

func NewHeliusService(cfg config.HeliusConfig, log *utils.Logger) *HeliusService {
	c := retryablehttp.NewClient()
	c.HTTPClient = cleanhttp.DefaultPooledClient()
	c.HTTPClient.Timeout = 15 * time.Second
	c.RetryMax = 2
	c.RetryWaitMin = 300 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil

	return &HeliusService{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		rpcURL:  cfg.RPCURL,
		apiKey:  cfg.APIKey,
		client:  c,
		log:     log.OrDefault().Named("helius"),
	}
}

// FetchTransactions GET {base}/addresses/{addr}/transactions，按时间倒序返回一页
func (s *HeliusService) FetchTransactions(ctx context.Context, address, before string, limit int) ([]models.EnhancedTransaction, error) {
	q := url.Values{}
	q.Set("api-key", s.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	endpoint := fmt.Sprintf("%s/addresses/%s/transactions?%s", s.apiBase, url.PathEscape(address), q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, redactKey(err.Error(), s.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var txs []models.EnhancedTransaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("%w: 解析交易失败: %v", ErrUpstream, err)
	}
	return txs, nil
}

type dasRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type dasAssetResponse struct {
	Result *dasAsset `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type dasAsset struct {
	TokenInfo *struct {
		Symbol   string `json:"symbol"`
		Decimals *int   `json:"decimals"`
	} `json:"token_info"`
	Content *struct {
		Metadata *struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"metadata"`
		Files []struct {
			URI    string `json:"uri"`
			CDNURI string `json:"cdn_uri"`
		} `json:"files"`
	} `json:"content"`
}

// GetAsset DAS getAsset 查询代币元数据。未配置 api key 或资产不存在时返回 nil。
func (s *HeliusService) GetAsset(ctx context.Context, mint string) (*models.TokenMetadata, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	payload, err := json.Marshal(dasRequest{
		JSONRPC: "2.0",
		ID:      "token-metadata-" + mint,
		Method:  "getAsset",
		Params:  map[string]string{"id": mint},
	})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, rpcEndpoint(s.rpcURL, s.apiKey), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, redactKey(err.Error(), s.apiKey))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: getAsset status %d", ErrUpstream, resp.StatusCode)
	}

	var out dasAssetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: 解析 getAsset 失败: %v", ErrUpstream, err)
	}
	if out.Error != nil {
		s.log.Debug("getAsset %s 返回错误: %d %s", mint, out.Error.Code, out.Error.Message)
		return nil, nil
	}
	if out.Result == nil {
		return nil, nil
	}
	return out.Result.toMetadata(mint), nil
}

func (a *dasAsset) toMetadata(mint string) *models.TokenMetadata {
	md := &models.TokenMetadata{Mint: mint, Decimals: 6}
	if a.TokenInfo != nil {
		md.Symbol = a.TokenInfo.Symbol
		if a.TokenInfo.Decimals != nil {
			md.Decimals = *a.TokenInfo.Decimals
		}
	}
	if a.Content != nil {
		if m := a.Content.Metadata; m != nil {
			if md.Symbol == "" {
				md.Symbol = m.Symbol
			}
			if m.Name != "" {
				name := m.Name
				md.Name = &name
			}
		}
		if len(a.Content.Files) > 0 {
			// 优先使用 CDN 地址
			logo := a.Content.Files[0].CDNURI
			if logo == "" {
				logo = a.Content.Files[0].URI
			}
			if logo != "" {
				md.Logo = &logo
			}
		}
	}
	if md.Symbol == "" {
		md.Symbol = mint
		if len(mint) > 8 {
			md.Symbol = mint[:8]
		}
	}
	return md
}

// redactKey 错误信息里带有完整 URL，避免把 api key 打进日志
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(key), "***")
}
