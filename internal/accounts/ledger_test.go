package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/evanmtz/streampost/internal/platform"
)

// memoryRepo is an in-memory Repository for ledger tests
type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]*Account
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]*Account), nextID: 1}
}

func (m *memoryRepo) Create(_ context.Context, acc *Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	copied := *acc
	copied.ID = id
	m.accounts[id] = &copied
	return id, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (m *memoryRepo) List(_ context.Context, p platform.Platform) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Account
	for _, acc := range m.accounts {
		if acc.Platform == p {
			copied := *acc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateCookies(_ context.Context, id int64, cookies string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.Cookies = cookies
	acc.CookieExpiresAt = expiresAt
	return nil
}

func (m *memoryRepo) IncrementJobCounters(_ context.Context, id int64, success bool, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if success {
		acc.TotalSuccessfulJobs++
		acc.LastSuccessfulSubmission = &completedAt
	} else {
		acc.TotalFailedJobs++
	}
	return nil
}

// TestRecordOutcome tests basic counter mutation
func TestRecordOutcome(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger(repo)
	ctx := context.Background()

	id, err := repo.Create(ctx, &Account{Platform: platform.Rumble, AccountName: "poster"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := ledger.RecordOutcome(ctx, id, true); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}
	if err := ledger.RecordOutcome(ctx, id, false); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	acc, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if acc.TotalSuccessfulJobs != 1 {
		t.Errorf("expected 1 success, got %d", acc.TotalSuccessfulJobs)
	}
	if acc.TotalFailedJobs != 1 {
		t.Errorf("expected 1 failure, got %d", acc.TotalFailedJobs)
	}
	if acc.LastSuccessfulSubmission == nil {
		t.Error("expected last successful submission to be set")
	}
}

// TestRecordOutcomeFailureOnly tests that failures never stamp the
// submission time
func TestRecordOutcomeFailureOnly(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger(repo)
	ctx := context.Background()

	id, _ := repo.Create(ctx, &Account{Platform: platform.Rumble, AccountName: "poster"})

	if err := ledger.RecordOutcome(ctx, id, false); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	acc, _ := repo.GetByID(ctx, id)
	if acc.LastSuccessfulSubmission != nil {
		t.Error("failure should not set last successful submission")
	}
}

// TestRecordOutcomeUnknownAccount tests the NotFound path
func TestRecordOutcomeUnknownAccount(t *testing.T) {
	ledger := NewLedger(newMemoryRepo())

	err := ledger.RecordOutcome(context.Background(), 42, true)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestRecordOutcomeConcurrent tests that concurrent completions for
// one account lose no updates
func TestRecordOutcomeConcurrent(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger(repo)
	ctx := context.Background()

	id, _ := repo.Create(ctx, &Account{Platform: platform.YouTube, AccountName: "poster"})

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				// Alternate outcomes
				if err := ledger.RecordOutcome(ctx, id, n%2 == 0); err != nil {
					t.Errorf("RecordOutcome failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	acc, _ := repo.GetByID(ctx, id)
	total := acc.TotalSuccessfulJobs + acc.TotalFailedJobs
	if total != workers*perWorker {
		t.Errorf("expected %d total outcomes, got %d", workers*perWorker, total)
	}
	if acc.TotalSuccessfulJobs != workers/2*perWorker {
		t.Errorf("expected %d successes, got %d", workers/2*perWorker, acc.TotalSuccessfulJobs)
	}
}

// TestUpdateCookies tests cookie installation on an account
func TestUpdateCookies(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger(repo)
	ctx := context.Background()

	id, _ := repo.Create(ctx, &Account{Platform: platform.Rumble, AccountName: "poster"})

	expires := time.Now().Add(48 * time.Hour)
	if err := ledger.UpdateCookies(ctx, id, `[{"name":"u_s","value":"x"}]`, &expires); err != nil {
		t.Fatalf("UpdateCookies failed: %v", err)
	}

	acc, _ := repo.GetByID(ctx, id)
	if acc.Cookies == "" {
		t.Error("cookies not stored")
	}
	if acc.CookieExpiresAt == nil || !acc.CookieExpiresAt.Equal(expires) {
		t.Errorf("expiry not stored: %v", acc.CookieExpiresAt)
	}
}
