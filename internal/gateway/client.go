package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"formpay/internal/config"
)

// Result 网关调用的统一返回
//
// 非 200 状态码或网络错误一律视为 Success=false；
// Body 为原始响应体，Message 在响应体为空时记录 HTTP 状态描述
type Result struct {
	Success    bool
	StatusCode int
	Body       []byte
	Message    string
	Err        error
}

// Decode 将响应体解码到 v
func (r *Result) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("响应体为空")
	}
	return json.Unmarshal(r.Body, v)
}

// Error 网关错误
//
// Transport=true 表示网络异常/超时，此时没有可用的返回码
type Error struct {
	Op         string
	Transport  bool
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Transport {
		return fmt.Sprintf("gateway %s: 网络异常: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("gateway %s: status=%d code=%s: %s", e.Op, e.StatusCode, e.Code, e.Message)
}

// Client 单个环境（test / live）的网关客户端
type Client struct {
	mode        string
	endpoint    string
	apiKey      string
	merchantID  string
	developerID string
	userAgent   string
	httpClient  *http.Client
}

func NewClient(mode string, env *config.GatewayEnvConfig, cfg *config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		mode:        mode,
		endpoint:    strings.TrimRight(env.Endpoint, "/"),
		apiKey:      env.APIKey,
		merchantID:  env.MerchantID,
		developerID: cfg.DeveloperID,
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Mode() string {
	return c.mode
}

func (c *Client) MerchantID() string {
	return c.merchantID
}

// Send 发送请求
//
// GET 请求的 body 编码为查询参数，其余方法编码为 JSON；
// pg/ 路径的请求自动附带 developer_id
func (c *Client) Send(ctx context.Context, method, path string, body map[string]interface{}) *Result {
	if c.apiKey == "" {
		log.Printf("[Gateway] 未配置 api_key: mode=%s, path=%s", c.mode, path)
		return &Result{Success: false, Err: fmt.Errorf("未配置 api_key")}
	}

	method = strings.ToUpper(method)
	if strings.Contains(path, "pg/") {
		if body == nil {
			body = map[string]interface{}{}
		}
		body["developer_id"] = c.developerID
	}

	reqURL := c.endpoint + path
	var reader io.Reader
	if method == http.MethodGet {
		if len(body) > 0 {
			reqURL = appendQuery(reqURL, body)
		}
	} else if len(body) > 0 {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Result{Success: false, Err: fmt.Errorf("编码请求体失败: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return &Result{Success: false, Err: fmt.Errorf("创建请求失败: %w", err)}
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.apiKey+":")))
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Gateway] 网络异常: %s %s, err=%v", method, path, err)
		return &Result{Success: false, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Gateway] 读取响应失败: %s %s, err=%v", method, path, err)
		return &Result{Success: false, StatusCode: resp.StatusCode, Err: err}
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		result.Message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Gateway] 请求失败: %s %s, status=%d, body=%s", method, path, resp.StatusCode, string(respBody))
		return result
	}

	result.Success = true
	return result
}

func appendQuery(rawURL string, params map[string]interface{}) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + values.Encode()
}

// merchantParam merchant_id 在网关侧是数字
func (c *Client) merchantParam() interface{} {
	if n, err := strconv.ParseInt(c.merchantID, 10, 64); err == nil {
		return n
	}
	return c.merchantID
}

// toParams 把请求结构体转成 map，便于追加公共参数
func toParams(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// ID 兼容网关返回数字或字符串形式的标识
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string {
	return string(id)
}
