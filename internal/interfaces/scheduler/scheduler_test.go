package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"keepmore/internal/domain/item"
	"keepmore/internal/domain/plaidsync"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ScheduleTime
		wantErr bool
	}{
		{in: "06:00", want: ScheduleTime{Hour: 6}},
		{in: "18:30", want: ScheduleTime{Hour: 18, Minute: 30}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduleTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestScheduler_ShouldRunOncePerSlot(t *testing.T) {
	s, err := NewScheduler(Config{ScheduleTimes: []string{"06:00", "18:00"}, WorkerCount: 1, QueueSize: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 1, 6, 0, 10, 0, time.UTC)
	if !s.shouldRun(at) {
		t.Fatal("expected run at 06:00")
	}
	if s.shouldRun(at.Add(30 * time.Second)) {
		t.Error("expected a single run per slot")
	}
	if s.shouldRun(at.Add(time.Hour)) {
		t.Error("expected no run at 07:00")
	}
	if !s.shouldRun(at.AddDate(0, 0, 1)) {
		t.Error("expected a run at 06:00 the next day")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := NewScheduler(Config{ScheduleTimes: []string{"18:00", "06:00"}, WorkerCount: 1, QueueSize: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := s.NextRun(now); !got.Equal(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("NextRun = %v", got)
	}
	late := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := s.NextRun(late); !got.Equal(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("NextRun after last slot = %v", got)
	}
}

func TestNewScheduler_RequiresTimes(t *testing.T) {
	if _, err := NewScheduler(Config{}, zap.NewNop()); err == nil {
		t.Error("expected error without schedule times")
	}
	if _, err := NewScheduler(Config{ScheduleTimes: []string{"6pm"}}, zap.NewNop()); err == nil {
		t.Error("expected error for a malformed time")
	}
}

type countingJob struct {
	mu   *sync.Mutex
	runs *int
	err  error
}

func (j countingJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	*j.runs++
	j.mu.Unlock()
	return j.err
}
func (j countingJob) UserID() string      { return "u1" }
func (j countingJob) Description() string { return "counting job" }

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	wp := NewWorkerPool(3, 0, time.Second, 10, zap.NewNop())
	wp.Start()

	jobs := make([]Job, 0, 6)
	for i := range 6 {
		var err error
		if i%2 == 0 {
			err = errors.New("boom")
		}
		jobs = append(jobs, countingJob{mu: &mu, runs: &runs, err: err})
	}
	if n := wp.SubmitBatch(jobs); n != 6 {
		t.Fatalf("submitted %d jobs, want 6", n)
	}
	wp.Shutdown()

	if runs != 6 {
		t.Errorf("ran %d jobs, want 6", runs)
	}
}

func TestWorkerPool_SubmitDropsWhenFull(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	wp := NewWorkerPool(1, 0, time.Second, 1, zap.NewNop())

	job := countingJob{mu: &mu, runs: &runs}
	if err := wp.Submit(job); err != nil {
		t.Fatalf("first submit error = %v", err)
	}
	if err := wp.Submit(job); err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Errorf("second submit error = %v, want queue full", err)
	}
}

// MockSyncer implements ItemSyncer for testing
type MockSyncer struct {
	SyncItemFunc func(ctx context.Context, it *item.Item, resources []plaidsync.Resource) plaidsync.ItemResult
}

func (m *MockSyncer) SyncItem(ctx context.Context, it *item.Item, resources []plaidsync.Resource) plaidsync.ItemResult {
	return m.SyncItemFunc(ctx, it, resources)
}

// MockLister implements ItemLister for testing
type MockLister struct {
	ListFunc func(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error)
}

func (m *MockLister) List(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error) {
	return m.ListFunc(ctx, kind, userID)
}

func TestItemSyncJob_Execute(t *testing.T) {
	tests := []struct {
		name    string
		kind    item.Kind
		result  plaidsync.ItemResult
		want    []plaidsync.Resource
		wantErr string
	}{
		{
			name:   "Banking success",
			kind:   item.KindBanking,
			result: plaidsync.ItemResult{Success: true},
			want:   []plaidsync.Resource{plaidsync.ResourceAccounts, plaidsync.ResourceTransactions, plaidsync.ResourceRecurring},
		},
		{
			name:   "Investments success",
			kind:   item.KindInvestments,
			result: plaidsync.ItemResult{Success: true},
			want:   []plaidsync.Resource{plaidsync.ResourceInvestments},
		},
		{
			name: "Resource failure",
			kind: item.KindBanking,
			result: plaidsync.ItemResult{Results: map[plaidsync.Resource]*plaidsync.ResourceResult{
				plaidsync.ResourceAccounts:     {Success: true},
				plaidsync.ResourceTransactions: {Error: "rate limited"},
			}},
			want:    []plaidsync.Resource{plaidsync.ResourceAccounts, plaidsync.ResourceTransactions, plaidsync.ResourceRecurring},
			wantErr: "1 failed resources",
		},
		{
			name:    "Credential failure",
			kind:    item.KindBanking,
			result:  plaidsync.ItemResult{Error: "failed to decrypt access token"},
			want:    []plaidsync.Resource{plaidsync.ResourceAccounts, plaidsync.ResourceTransactions, plaidsync.ResourceRecurring},
			wantErr: "decrypt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []plaidsync.Resource
			syncer := &MockSyncer{
				SyncItemFunc: func(ctx context.Context, it *item.Item, resources []plaidsync.Resource) plaidsync.ItemResult {
					got = resources
					return tt.result
				},
			}

			job := NewItemSyncJob(&item.Item{ID: "row-1", Kind: tt.kind, UserID: "u1"}, syncer, zap.NewNop())
			err := job.Execute(context.Background())

			if tt.wantErr == "" && err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("Execute() error = %v, want %q", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("resources = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("resources = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestItemJobProvider(t *testing.T) {
	lister := &MockLister{
		ListFunc: func(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error) {
			if userID != "" {
				t.Errorf("expected all users, got %q", userID)
			}
			if kind == item.KindInvestments {
				return []*item.Item{{ID: "inv-1", Kind: kind, UserID: "u2"}}, nil
			}
			return []*item.Item{{ID: "bank-1", Kind: kind, UserID: "u1"}, {ID: "bank-2", Kind: kind, UserID: "u1"}}, nil
		},
	}

	jobs, err := ItemJobProvider(lister, &MockSyncer{}, zap.NewNop())(context.Background())
	if err != nil {
		t.Fatalf("provider error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[2].UserID() != "u2" || jobs[2].Description() != "investments sync for item inv-1" {
		t.Errorf("unexpected job: %s / %s", jobs[2].UserID(), jobs[2].Description())
	}
}

func TestItemJobProvider_ListFailure(t *testing.T) {
	lister := &MockLister{
		ListFunc: func(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error) {
			return nil, errors.New("connection refused")
		},
	}
	if _, err := ItemJobProvider(lister, &MockSyncer{}, zap.NewNop())(context.Background()); err == nil {
		t.Error("expected error")
	}
}
