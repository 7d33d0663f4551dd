package service

import (
	"context"
	"errors"
	"testing"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/model"
	"formpay/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func seedPayment(t *testing.T, db *gorm.DB, action, status, transactionID string) (*model.Entry, *model.TransactionRecord) {
	t.Helper()
	ctx := context.Background()
	entry := widgetEntry(customerValues())
	entry.EntryNo = "E" + transactionID
	entry.PaymentStatus = status
	entry.PaymentMode = config.ModeTest
	entry.PaymentAmount = dec("25")
	entry.TransactionID = transactionID
	entry.TransactionType = model.EntryTransactionTypePayment
	if err := repository.NewEntryRepository(db).Create(ctx, nil, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	record := &model.TransactionRecord{
		EntryID:       entry.ID,
		FeedID:        1,
		Mode:          config.ModeTest,
		Action:        action,
		IsSuccess:     true,
		TransactionID: transactionID,
		Amount:        dec("25"),
		CustomerID:    "JANEDOE_ab12",
		PaymentMethod: "VS",
		PaymentStatus: status,
	}
	if err := repository.NewTransactionRepository(db).Create(ctx, nil, record); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return entry, record
}

func newActionService(t *testing.T, db *gorm.DB, api *fakeAPI) (*PaymentActionService, *miniredis.Miniredis) {
	t.Helper()
	mr, client := newTestRedis(t)
	return NewPaymentActionService(db, client, &fakeProvider{api: api}, testConfig()), mr
}

func TestExecute_VoidAuthorization(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	svc, mr := newActionService(t, db, api)
	entry, _ := seedPayment(t, db, model.ActionAuthorize, model.PaymentStatusAuthorized, "T1")
	ctx := context.Background()

	resp, err := svc.Execute(ctx, entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionVoid})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.PaymentStatus != model.PaymentStatusVoided {
		t.Errorf("status = %s", resp.PaymentStatus)
	}
	if api.count("void:T1") != 1 {
		t.Errorf("calls = %v", api.Calls())
	}

	record, _ := repository.NewTransactionRepository(db).GetByEntryAndFeed(ctx, entry.ID, 1)
	if record.PaymentStatus != model.PaymentStatusVoided || record.Action != model.ActionAuthorize {
		t.Errorf("record = %+v", record)
	}
	entryRepo := repository.NewEntryRepository(db)
	updated, _ := entryRepo.Get(ctx, entry.ID)
	if updated.PaymentStatus != model.PaymentStatusVoided {
		t.Errorf("entry status = %s", updated.PaymentStatus)
	}
	notes, _ := entryRepo.ListNotes(ctx, entry.ID)
	if len(notes) != 1 || notes[0].Content != "Authorization has been voided. Transaction Id: T1." {
		t.Errorf("notes = %+v", notes)
	}
	if mr.Exists("formpay:lock:entry:1") {
		t.Error("lock not released")
	}
}

func TestExecute_CaptureThenRefund(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	svc, _ := newActionService(t, db, api)
	entry, _ := seedPayment(t, db, model.ActionAuthorize, model.PaymentStatusAuthorized, "T1")
	ctx := context.Background()

	if _, err := svc.Execute(ctx, entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionCapture}); err != nil {
		t.Fatalf("capture: %v", err)
	}
	updated, _ := repository.NewEntryRepository(db).Get(ctx, entry.ID)
	if updated.PaymentStatus != model.PaymentStatusPaid || updated.PaymentDate == nil || updated.PaymentMethod != "VS" {
		t.Errorf("entry = %+v", updated)
	}

	if _, err := svc.Execute(ctx, entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionRefund}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	want := []string{"capture:T1:25.00", "refund:T1:25.00"}
	if calls := api.Calls(); len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	pending, _ := repository.NewOutboxRepository(db).GetPendingMessages(ctx, 10)
	if len(pending) != 2 {
		t.Errorf("outbox messages = %d, want 2", len(pending))
	}
}

func TestExecute_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		status  string
		request string
		wantErr error
	}{
		{"refund uncaptured authorization", model.ActionAuthorize, model.PaymentStatusAuthorized, PaymentActionRefund, ErrStatusInvalid},
		{"void a sale", model.ActionCapture, model.PaymentStatusPaid, PaymentActionVoid, ErrActionNotAllowed},
		{"cancel a sale", model.ActionCapture, model.PaymentStatusPaid, PaymentActionCancel, ErrActionNotAllowed},
		{"refund twice", model.ActionCapture, model.PaymentStatusRefunded, PaymentActionRefund, ErrStatusInvalid},
		{"unknown action", model.ActionCapture, model.PaymentStatusPaid, "chargeback", ErrActionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			api := newFakeAPI()
			svc, _ := newActionService(t, db, api)
			entry, _ := seedPayment(t, db, tt.action, tt.status, "T1")

			_, err := svc.Execute(context.Background(), entry.ID, &PaymentActionRequest{FeedID: 1, Action: tt.request})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(api.Calls()) != 0 {
				t.Errorf("gateway called: %v", api.Calls())
			}
		})
	}
}

func TestExecute_TransactionIDMismatch(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	svc, _ := newActionService(t, db, api)
	entry, _ := seedPayment(t, db, model.ActionAuthorize, model.PaymentStatusAuthorized, "T1")

	_, err := svc.Execute(context.Background(), entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionVoid, TransactionID: "T2"})
	if !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("err = %v", err)
	}
}

func TestExecute_LockHeld(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	svc, mr := newActionService(t, db, api)
	entry, _ := seedPayment(t, db, model.ActionAuthorize, model.PaymentStatusAuthorized, "T1")

	if err := mr.Set("formpay:lock:entry:1", "other-request"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Execute(context.Background(), entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionVoid})
	if !errors.Is(err, ErrActionInProgress) {
		t.Fatalf("err = %v, want ErrActionInProgress", err)
	}
	if got, _ := mr.Get("formpay:lock:entry:1"); got != "other-request" {
		t.Errorf("lock owner = %q", got)
	}
	if len(api.Calls()) != 0 {
		t.Errorf("gateway called: %v", api.Calls())
	}
}

func TestExecute_GatewayDeclined(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	api.void = func(pgID string) (*gateway.PGResponse, error) {
		return nil, declined("void", "401")
	}
	svc, mr := newActionService(t, db, api)
	entry, _ := seedPayment(t, db, model.ActionAuthorize, model.PaymentStatusAuthorized, "T1")
	ctx := context.Background()

	_, err := svc.Execute(ctx, entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionVoid})
	if !errors.Is(err, ErrGatewayFailed) {
		t.Fatalf("err = %v, want ErrGatewayFailed", err)
	}
	record, _ := repository.NewTransactionRepository(db).GetByEntryAndFeed(ctx, entry.ID, 1)
	if record.PaymentStatus != model.PaymentStatusAuthorized {
		t.Errorf("status changed to %s", record.PaymentStatus)
	}
	if mr.Exists("formpay:lock:entry:1") {
		t.Error("lock not released after failure")
	}
}

func TestExecute_SubscriptionPauseResumeCancel(t *testing.T) {
	db := newTestDB(t)
	api := newFakeAPI()
	svc, _ := newActionService(t, db, api)
	entry, _ := seedSubscription(t, db, "555")
	ctx := context.Background()

	for _, action := range []string{PaymentActionPause, PaymentActionResume, PaymentActionCancel} {
		if _, err := svc.Execute(ctx, entry.ID, &PaymentActionRequest{FeedID: 2, Action: action, TransactionID: "555"}); err != nil {
			t.Fatalf("%s: %v", action, err)
		}
	}

	want := []string{"pause_subscription:555", "resume_subscription:555", "cancel_subscription:555"}
	calls := api.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}

	updated, _ := repository.NewEntryRepository(db).Get(ctx, entry.ID)
	if updated.PaymentStatus != model.PaymentStatusCancelled {
		t.Errorf("entry status = %s", updated.PaymentStatus)
	}
}

func TestExecute_NoPaymentMode(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newActionService(t, db, newFakeAPI())
	entry := widgetEntry(customerValues())
	entry.EntryNo = "E-none"
	if err := repository.NewEntryRepository(db).Create(context.Background(), nil, entry); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Execute(context.Background(), entry.ID, &PaymentActionRequest{FeedID: 1, Action: PaymentActionVoid})
	if !errors.Is(err, ErrNoPaymentMode) {
		t.Fatalf("err = %v", err)
	}
}
