package service

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var admin = models.ActorScope{Admin: true}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Notify(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) ofType(t models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, 0)
	for _, evt := range r.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func setup(t *testing.T) (*Service, *repository.MemoryRepository, *recorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := repository.NewMemoryRepository()
	rec := &recorder{}
	svc := NewService(repo, logger, rec, &config.Config{CertificateSecret: "test-secret"})
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, rec
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
