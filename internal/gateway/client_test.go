package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"formpay/internal/config"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ModeTest,
		&config.GatewayEnvConfig{Endpoint: srv.URL + "/", MerchantID: "212000", APIKey: "key"},
		&config.GatewayConfig{DeveloperID: "dev1", UserAgent: "formpay-test", TimeoutSeconds: 5})
}

func readJSON(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return body
}

func TestSale(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pg/sale" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "formpay-test" {
			t.Errorf("user agent = %q", got)
		}
		body := readJSON(t, r)
		if body["developer_id"] != "dev1" || body["merchant_id"] != float64(212000) || body["amt_tran"] != 25.0 {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"rcode":"000","rmsg":"Approved","pg_id":"abc123","auth_code":"T1234"}`))
	})

	resp, err := c.Sale(context.Background(), &TransactionRequest{AmtTran: 25, CardID: "tok", CustomerID: "JANEDOE_ab12"})
	if err != nil {
		t.Fatalf("Sale: %v", err)
	}
	if resp.PgID != "abc123" || resp.AuthCode != "T1234" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPGDeclined(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"declined with 200", http.StatusOK, `{"rcode":"108","rmsg":"bad card"}`, "108", "Invalid card number"},
		{"declined with 400", http.StatusBadRequest, `{"rcode":"401"}`, "401", "Void failed - transaction already captured or voided"},
		{"unknown rcode", http.StatusOK, `{"rcode":"555"}`, "555", GenericErrorMessage},
		{"server error without body", http.StatusInternalServerError, ``, "", GenericErrorMessage},
		{"unparsable body", http.StatusOK, `<html>`, "", GenericErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Void(context.Background(), "T1")
			var gwErr *Error
			if !errors.As(err, &gwErr) {
				t.Fatalf("err = %v", err)
			}
			if gwErr.Transport || gwErr.Code != tt.wantCode || gwErr.Message != tt.wantMsg {
				t.Errorf("err = %+v", gwErr)
			}
		})
	}
}

func TestCaptureSendsAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pg/capture/T1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if body := readJSON(t, r); body["amt_tran"] != 12.5 {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"rcode":"000","pg_id":"T1"}`))
	})
	if _, err := c.Capture(context.Background(), "T1", decimal.RequireFromString("12.50")); err != nil {
		t.Fatalf("Capture: %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.ModeLive, &config.GatewayEnvConfig{Endpoint: srv.URL, MerchantID: "1", APIKey: "key"}, &config.GatewayConfig{})

	_, err := c.Authorize(context.Background(), &TransactionRequest{AmtTran: 1})
	var gwErr *Error
	if !errors.As(err, &gwErr) || !gwErr.Transport {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	c := NewClient(config.ModeTest, &config.GatewayEnvConfig{Endpoint: srv.URL}, &config.GatewayConfig{})

	if _, err := c.GetTransientKey(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
	if called {
		t.Error("request sent without api key")
	}
}

func TestAddSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/platform/subscription" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body := readJSON(t, r)
		if body["plan_duration"] != -1.0 || body["interval"] != 2.0 || body["plan_frequency"] != 3.0 {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["developer_id"]; ok {
			t.Error("developer_id sent to platform api")
		}
		w.Write([]byte(`{"code":0,"message":"Success","data":{"subscription_id":9876,"customer_id":"JANEDOE_ab12","recur_amt":19.99,"recur_date_start":"2024-03-11","status":"A"}}`))
	})

	freq := 3
	sub, err := c.AddSubscription(context.Background(), &SubscriptionRequest{
		CustomerID: "JANEDOE_ab12", DateStart: "2024-03-11", PlanFrequency: &freq, Interval: 2, PlanDuration: -1, AmtTran: 19.99,
	})
	if err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if sub.SubscriptionID.String() != "9876" || !sub.RecurAmt.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("sub = %+v", sub)
	}
}

func TestPlatformErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"validation", http.StatusBadRequest, `{"code":2,"message":"bad"}`, "2", "Request failed validation"},
		{"unauthorized", http.StatusUnauthorized, `{"code":11}`, "11", DecodePlatformCode(11)},
		{"code in 200", http.StatusOK, `{"code":6,"message":"no access"}`, "6", DecodePlatformCode(6)},
		{"unknown code", http.StatusBadRequest, `{"code":42}`, "42", GenericErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			err := c.CancelSubscription(context.Background(), "9876", "JANEDOE_ab12")
			var gwErr *Error
			if !errors.As(err, &gwErr) {
				t.Fatalf("err = %v", err)
			}
			if gwErr.Code != tt.wantCode || gwErr.Message != tt.wantMsg {
				t.Errorf("err = %+v", gwErr)
			}
		})
	}
}

func TestDeleteCustomerEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/platform/vault/customer/JANEDOE_ab12" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
	})
	if err := c.DeleteCustomer(context.Background(), "JANEDOE_ab12"); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
}

func TestGetPlansPaginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "status,IS,E" {
			t.Errorf("filter = %q", got)
		}
		switch r.URL.Query().Get("page") {
		case "":
			w.Write([]byte(`{"code":0,"totalPages":3,"page":0,"data":[{"plan_code":"gold","amt_tran":30}]}`))
		case "1":
			w.WriteHeader(http.StatusInternalServerError)
		case "2":
			w.Write([]byte(`{"code":0,"totalPages":3,"page":2,"data":[{"plan_code":"silver","amt_tran":15}]}`))
		}
	})

	plans, err := c.GetPlans(context.Background())
	if err != nil {
		t.Fatalf("GetPlans: %v", err)
	}
	if len(plans) != 2 || plans[0].PlanCode != "gold" || plans[1].PlanCode != "silver" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestBrowseWebhooksQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Query().Get("count") != "1" {
			t.Errorf("request = %s %s", r.Method, r.URL.String())
		}
		w.Write([]byte(`{"code":0,"data":[{"webhook_id":77,"status":"ACTIVE","security_key":"s3"}]}`))
	})

	hooks, err := c.BrowseWebhooks(context.Background(), 1)
	if err != nil {
		t.Fatalf("BrowseWebhooks: %v", err)
	}
	if len(hooks) != 1 || hooks[0].WebhookID != "77" || hooks[0].SigningSecret() != "s3" {
		t.Errorf("hooks = %+v", hooks)
	}
}

func TestMerchantSettingsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/platform/vendor/settings/212000" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"code":0,"data":{}}`))
	})
	if _, err := c.GetMerchantSettings(context.Background()); err == nil {
		t.Fatal("empty merchant settings accepted")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&config.GatewayConfig{
		Test: config.GatewayEnvConfig{MerchantID: "1"},
		Live: config.GatewayEnvConfig{MerchantID: "2"},
	})
	api, err := r.API(config.ModeLive)
	if err != nil || api.MerchantID() != "2" || api.Mode() != config.ModeLive {
		t.Fatalf("live api = %v, %v", api, err)
	}
	if _, err := r.API("staging"); !errors.Is(err, config.ErrUnknownMode) {
		t.Errorf("err = %v", err)
	}
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":123,"b":"abc","c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "123" || v.B != "abc" || v.C != "" {
		t.Errorf("ids = %+v", v)
	}
}
