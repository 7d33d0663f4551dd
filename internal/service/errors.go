package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData  = errors.New("insufficient data to process payment")
	ErrMixedMode         = errors.New("同一次提交的 feed 不能混用 test / live 环境")
	ErrNoPaymentMode     = errors.New("提交记录没有支付环境")
	ErrActionNotAllowed  = errors.New("当前交易不支持该操作")
	ErrStatusInvalid     = errors.New("当前状态不允许该操作")
	ErrActionInProgress  = errors.New("该提交记录正在处理其他操作，请稍后重试")
	ErrGatewayFailed     = errors.New("网关操作失败")
	ErrInvalidSignature  = errors.New("webhook 签名校验失败")
	ErrInvalidPayload    = errors.New("webhook 请求体无法解析")
	ErrWebhookNotCreated = errors.New("webhook 注册失败")
)

// ValidationError 返回给提交者的表单校验错误
// Message 是可直接展示的文案，Err 保留内部原因
type ValidationError struct {
	FeedID  int64
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed %d: %s: %v", e.FeedID, e.Message, e.Err)
	}
	return fmt.Sprintf("feed %d: %s", e.FeedID, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
