package waitlist

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type memRepository struct {
	emails map[string]Signup
	err    error
}

func (m *memRepository) Insert(ctx context.Context, s Signup) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.emails[s.Email]; ok {
		return false, nil
	}
	m.emails[s.Email] = s
	return true, nil
}

func TestService_Join(t *testing.T) {
	repo := &memRepository{emails: map[string]Signup{}}
	svc := NewService(repo, zap.NewNop())

	if err := svc.Join(context.Background(), Signup{Name: " Ana ", Email: " Ana@Example.com", Country: "ca"}); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if err := svc.Join(context.Background(), Signup{Name: "Ana", Email: "ana@example.com", Country: "CA"}); err != nil {
		t.Fatalf("duplicate Join() error = %v", err)
	}

	got, ok := repo.emails["ana@example.com"]
	if !ok || len(repo.emails) != 1 {
		t.Fatalf("emails = %v", repo.emails)
	}
	if got.Name != "Ana" || got.Country != "CA" {
		t.Errorf("stored = %+v", got)
	}
}

func TestService_JoinErrors(t *testing.T) {
	svc := NewService(&memRepository{emails: map[string]Signup{}}, zap.NewNop())
	if err := svc.Join(context.Background(), Signup{Email: "  "}); !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}

	svc = NewService(&memRepository{err: errors.New("connection refused")}, zap.NewNop())
	if err := svc.Join(context.Background(), Signup{Email: "a@b.co"}); err == nil {
		t.Error("expected repository error")
	}
}
