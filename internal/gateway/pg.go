package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// LineItem 订单明细，line_items 以 JSON 字符串形式随交易提交
type LineItem struct {
	ProductCode    string  `json:"product_code"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitCost       float64 `json:"unit_cost"`
	UnitOfMeasure  string  `json:"unit_of_measure"`
	DebitCreditInd string  `json:"debit_credit_ind"`
}

// TransactionRequest 授权 / 销售请求
type TransactionRequest struct {
	AmtTran        float64           `json:"amt_tran"`
	AvsZip         string            `json:"avs_zip,omitempty"`
	CardID         string            `json:"card_id"`
	CustomerID     string            `json:"customer_id"`
	LineItems      string            `json:"line_items"`
	MerchantRefNum string            `json:"merchant_ref_num"`
	ProfileID      string            `json:"profile_id,omitempty"`
	PurchaseID     string            `json:"purchase_id"`
	ReportData     map[string]string `json:"report_data,omitempty"`
	CardholderName string            `json:"cardholder_name"`
	EmailReceipt   bool              `json:"email_receipt,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
}

// PGResponse pg 接口响应
type PGResponse struct {
	PgID     string `json:"pg_id"`
	RCode    string `json:"rcode"`
	RMsg     string `json:"rmsg"`
	AuthCode string `json:"auth_code,omitempty"`
}

// Authorize 预授权
// POST /pg/auth
func (c *Client) Authorize(ctx context.Context, req *TransactionRequest) (*PGResponse, error) {
	return c.pgTransaction(ctx, "authorize", "/pg/auth", req)
}

// Sale 授权并扣款
// POST /pg/sale
func (c *Client) Sale(ctx context.Context, req *TransactionRequest) (*PGResponse, error) {
	return c.pgTransaction(ctx, "sale", "/pg/sale", req)
}

// Capture 对已授权交易扣款
// POST /pg/capture/{pg_id}
func (c *Client) Capture(ctx context.Context, pgID string, amount decimal.Decimal) (*PGResponse, error) {
	return c.pgCall(ctx, "capture", fmt.Sprintf("/pg/capture/%s", pgID), map[string]interface{}{
		"amt_tran": amount.InexactFloat64(),
	})
}

// Refund 按金额退款
// POST /pg/refund/{pg_id}
func (c *Client) Refund(ctx context.Context, pgID string, amount decimal.Decimal) (*PGResponse, error) {
	return c.pgCall(ctx, "refund", fmt.Sprintf("/pg/refund/%s", pgID), map[string]interface{}{
		"amt_tran": amount.InexactFloat64(),
	})
}

// Void 撤销未扣款的授权
// POST /pg/void/{pg_id}
func (c *Client) Void(ctx context.Context, pgID string) (*PGResponse, error) {
	return c.pgCall(ctx, "void", fmt.Sprintf("/pg/void/%s", pgID), nil)
}

func (c *Client) pgTransaction(ctx context.Context, op, path string, req *TransactionRequest) (*PGResponse, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, fmt.Errorf("编码交易请求失败: %w", err)
	}
	return c.pgCall(ctx, op, path, params)
}

func (c *Client) pgCall(ctx context.Context, op, path string, params map[string]interface{}) (*PGResponse, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["merchant_id"] = c.merchantParam()

	result := c.Send(ctx, http.MethodPost, path, params)
	return decodePG(op, result)
}

func decodePG(op string, result *Result) (*PGResponse, error) {
	if result.Err != nil && result.StatusCode == 0 {
		return nil, &Error{Op: op, Transport: true, Message: result.Err.Error()}
	}

	var resp PGResponse
	decodeErr := result.Decode(&resp)

	if !result.Success {
		gwErr := &Error{Op: op, StatusCode: result.StatusCode, Message: GenericErrorMessage}
		if decodeErr == nil && resp.RCode != "" {
			gwErr.Code = resp.RCode
			gwErr.Message = DecodePaymentGatewayCode(resp.RCode)
		}
		return nil, gwErr
	}
	if decodeErr != nil {
		return nil, &Error{Op: op, StatusCode: result.StatusCode, Message: GenericErrorMessage}
	}
	if resp.RCode != "" && resp.RCode != RCodeSuccess {
		return nil, &Error{Op: op, StatusCode: result.StatusCode, Code: resp.RCode, Message: DecodePaymentGatewayCode(resp.RCode)}
	}
	return &resp, nil
}
