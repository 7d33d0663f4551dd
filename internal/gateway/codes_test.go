package gateway

import "testing"

func TestDecodePaymentGatewayCode(t *testing.T) {
	tests := map[string]string{
		"000": "Success",
		"108": "Invalid card number",
		"998": "Timeout",
		"999": GenericErrorMessage,
		"":    GenericErrorMessage,
		"777": GenericErrorMessage,
	}
	for code, want := range tests {
		if got := DecodePaymentGatewayCode(code); got != want {
			t.Errorf("DecodePaymentGatewayCode(%q) = %q, want %q", code, got, want)
		}
		// 同一返回码多次解码结果一致
		if again := DecodePaymentGatewayCode(code); again != want {
			t.Errorf("DecodePaymentGatewayCode(%q) not stable", code)
		}
	}
}

func TestDecodePlatformCode(t *testing.T) {
	tests := map[int]string{
		0:  "Success",
		2:  "Request failed validation",
		99: "Server problem",
		-1: GenericErrorMessage,
		3:  GenericErrorMessage,
	}
	for code, want := range tests {
		if got := DecodePlatformCode(code); got != want {
			t.Errorf("DecodePlatformCode(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestSubscriptionStatusAndCardType(t *testing.T) {
	if got := SubscriptionStatus("S"); got != "Suspended" {
		t.Errorf("S = %q", got)
	}
	if got := SubscriptionStatus("X"); got != "" {
		t.Errorf("unknown status = %q", got)
	}
	if got := CardTypeLabel("MC"); got != "MasterCard" {
		t.Errorf("MC = %q", got)
	}
	if got := CardTypeLabel("ZZ"); got != "ZZ" {
		t.Errorf("unknown card type = %q", got)
	}
}
