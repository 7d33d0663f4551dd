package gateway

// 网关返回码表。pg 接口返回 rcode，platform 接口返回 code，两套表互不通用

const (
	RCodeSuccess    = "000"
	PlatformSuccess = 0

	// 未收录的返回码统一按此处理
	GenericErrorMessage = "Internal error"
)

var paymentGatewayCodes = map[string]string{
	"000": "Success",
	"100": "Invalid message",
	"101": "Invalid credentials - The merchant_id and security_key provided do not match an account",
	"102": "Invalid payment gateway ID - The pg_id value could not be linked to a valid transaction",
	"103": "Missing cardholder data",
	"104": "Invalid transaction amount - The request was either missing the amt_tran or the value provided was invalid",
	"105": "Missing auth_code",
	"106": "Invalid AVS",
	"107": "Invalid expiration date",
	"108": "Invalid card number",
	"109": "Field length validation failed",
	"110": "Dynamic DBA not allowed",
	"111": "Credits not allowed",
	"112": "Invalid customer data - customer_id already exists or required customer fields are not included",
	"401": "Void failed - transaction already captured or voided",
	"402": "Refund failed - transaction has already been refunded, original transaction has not been captured, total amount of all refunds exceeds the original transaction amount, or original transaction was not a sale",
	"403": "Capture failed - amount exceeds the authorized amount, the transaction has already been captured, or authorization has been voided",
	"404": "Batch close failed",
	"405": "Tokenization failed",
	"998": "Timeout",
	"999": GenericErrorMessage,
}

var platformCodes = map[int]string{
	0:  "Success",
	2:  "Request failed validation",
	6:  "API Key does not have access to this resource",
	7:  "Service doesn't exist",
	11: "Credentials provided were not recognized by the API, or operation was not allowed for this merchant",
	99: "Server problem",
}

// 订阅状态码
var subscriptionStatuses = map[string]string{
	"A": "Active",
	"D": "Complete",
	"P": "Paused",
	"C": "Canceled",
	"S": "Suspended",
}

var cardTypes = map[string]string{
	"AM": "American Express",
	"DS": "Discover",
	"PP": "PayPal",
	"MC": "MasterCard",
	"VS": "Visa",
	"AP": "ACH",
}

// DecodePaymentGatewayCode 将 pg 接口的 rcode 翻译成可读信息
func DecodePaymentGatewayCode(rcode string) string {
	if msg, ok := paymentGatewayCodes[rcode]; ok {
		return msg
	}
	return GenericErrorMessage
}

// DecodePlatformCode 将 platform 接口的 code 翻译成可读信息
func DecodePlatformCode(code int) string {
	if msg, ok := platformCodes[code]; ok {
		return msg
	}
	return GenericErrorMessage
}

// SubscriptionStatus 返回状态码对应的订阅状态，未知状态码返回空串
func SubscriptionStatus(code string) string {
	return subscriptionStatuses[code]
}

func CardTypeLabel(code string) string {
	if label, ok := cardTypes[code]; ok {
		return label
	}
	return code
}
