package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"formpay/internal/config"
	"formpay/internal/infrastructure/database"
	"formpay/internal/model"
	"formpay/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakePublisher struct {
	err  error
	sent []string
}

func (p *fakePublisher) SendMessage(topic, key, value string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, topic+":"+key)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "job.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func seedEvents(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	repo := repository.NewOutboxRepository(db)
	for i := 1; i <= n; i++ {
		err := repo.CreatePaymentEvent(context.Background(), nil, "payment_event", &model.PaymentEvent{
			Event:   model.EventPaymentCaptured,
			EntryID: int64(i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessPending_Sends(t *testing.T) {
	db := newTestDB(t)
	seedEvents(t, db, 2)
	pub := &fakePublisher{}
	sender := NewOutboxSender(db, pub, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}})
	ctx := context.Background()

	if sent := sender.ProcessPending(ctx); sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if len(pub.sent) != 2 {
		t.Errorf("published = %v", pub.sent)
	}
	counts, _ := repository.NewOutboxRepository(db).CountByStatus(ctx)
	if counts[model.OutboxStatusSent] != 2 {
		t.Errorf("counts = %v", counts)
	}
	if sent := sender.ProcessPending(ctx); sent != 0 {
		t.Errorf("second run sent %d", sent)
	}
}

func TestProcessPending_RetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	seedEvents(t, db, 1)
	pub := &fakePublisher{err: errors.New("broker down")}
	sender := NewOutboxSender(db, pub, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}})
	ctx := context.Background()
	repo := repository.NewOutboxRepository(db)

	for i := 0; i < 2; i++ {
		sender.ProcessPending(ctx)
	}
	pending, _ := repo.GetPendingMessages(ctx, 10)
	if len(pending) != 1 || pending[0].RetryCount != 2 {
		t.Fatalf("pending = %+v", pending)
	}

	sender.ProcessPending(ctx)
	failed, _ := repo.GetFailedMessages(ctx, 10)
	if len(failed) != 1 || failed[0].RetryCount != 3 {
		t.Fatalf("failed = %+v", failed)
	}

	pub.err = nil
	if sent := sender.ProcessPending(ctx); sent != 0 {
		t.Errorf("failed message sent without requeue")
	}
	if n, _ := repo.RequeueFailed(ctx); n != 1 {
		t.Fatalf("requeued = %d", n)
	}
	if sent := sender.ProcessPending(ctx); sent != 1 {
		t.Errorf("sent after requeue = %d", sent)
	}
}

func TestStartStops(t *testing.T) {
	db := newTestDB(t)
	sender := NewOutboxSender(db, &fakePublisher{}, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}})

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()
	<-done
}
