package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const SignatureHeader = "X-Qualpay-Webhook-Signature"

// VerifySignature 校验 webhook 签名
//
// 签名头可能携带多个逗号分隔的 base64(HMAC-SHA256(body, secret))，任一匹配即通过。
// 空头、空密钥或无法 base64 解码的片段一律拒绝，比较使用 hmac.Equal
func VerifySignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		sig, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return false
		}
		if hmac.Equal(sig, expected) {
			return true
		}
	}
	return false
}

// Sign 计算签名，供测试与回放工具使用
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
