package middleware_test

import (
	"context"
	"time"

	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/aretw0/sessionvault/pkg/ports"
)

// FailingStore wraps a provider and fails writes with a medium error.
type FailingStore struct {
	ports.StorageProvider
	calls []string
}

func (s *FailingStore) Save(ctx context.Context, id string, payload []byte) error {
	s.calls = append(s.calls, "save")
	return domain.NewStorageError(domain.OpWrite, id, context.DeadlineExceeded)
}

func (s *FailingStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.calls = append(s.calls, "get")
	return s.StorageProvider.Get(ctx, id)
}

// ClearOld is reached without Sweep since FailingStore only exposes the interface methods.
func (s *FailingStore) ClearOld(ctx context.Context, maxAge time.Duration) error {
	s.calls = append(s.calls, "clear_old")
	return s.StorageProvider.ClearOld(ctx, maxAge)
}

// recorder is a middleware that appends its name to trace on every Get.
type recorder struct {
	ports.StorageProvider
	name  string
	trace *[]string
}

func (r *recorder) Get(ctx context.Context, id string) ([]byte, error) {
	*r.trace = append(*r.trace, r.name)
	return r.StorageProvider.Get(ctx, id)
}
