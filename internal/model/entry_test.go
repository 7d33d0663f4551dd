package model

import "testing"

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{PaymentStatusAuthorized, PaymentStatusVoided, true},
		{PaymentStatusAuthorized, PaymentStatusPaid, true},
		{PaymentStatusAuthorized, PaymentStatusRefunded, false},
		{PaymentStatusPaid, PaymentStatusRefunded, true},
		{PaymentStatusPaid, PaymentStatusVoided, false},
		{PaymentStatusRefunded, PaymentStatusRefunded, false},
		{PaymentStatusVoided, PaymentStatusPaid, false},
		{PaymentStatusActive, PaymentStatusPaused, true},
		{PaymentStatusActive, PaymentStatusActive, false},
		{PaymentStatusPaused, PaymentStatusActive, true},
		{PaymentStatusSuspended, PaymentStatusActive, true},
		{PaymentStatusFailed, PaymentStatusCancelled, true},
		{PaymentStatusCancelled, PaymentStatusActive, false},
		{"", PaymentStatusPaid, false},
	}
	for _, tt := range tests {
		if got := CanTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestInverseAction(t *testing.T) {
	for action, want := range map[string]string{
		ActionAuthorize: "void",
		ActionCapture:   "refund",
		ActionSubscribe: "cancel",
		"other":         "",
	} {
		if got := InverseAction(action); got != want {
			t.Errorf("InverseAction(%q) = %q", action, got)
		}
	}
}

func TestBillingCardIsBusinessACH(t *testing.T) {
	cases := []struct {
		card BillingCard
		want bool
	}{
		{BillingCard{CardType: CardTypeACH, TypeID: ACHTypeBusinessChecking}, true},
		{BillingCard{CardType: CardTypeACH, TypeID: ACHTypeBusinessSavings}, true},
		{BillingCard{CardType: CardTypeACH, TypeID: "C"}, false},
		{BillingCard{CardType: "VS", TypeID: ACHTypeBusinessChecking}, false},
	}
	for _, c := range cases {
		if got := c.card.IsBusinessACH(); got != c.want {
			t.Errorf("%+v: IsBusinessACH = %v", c.card, got)
		}
	}
}
