package utils

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParseAddress 校验并解析 base58 格式的 Solana 地址
func ParseAddress(addr string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(strings.TrimSpace(addr))
}

// IsValidAddress 判断字符串是否为合法的 Solana 地址
func IsValidAddress(addr string) bool {
	_, err := ParseAddress(addr)
	return err == nil
}

// ShortAddress 日志用的缩写形式，例如 HeLp6N...98jwC
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-5:]
}
