package dues

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range m.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memStore is an in-memory ledger. Execute serializes transactions and
// restores the previous state when fn fails, like a database rollback.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	dues    map[uuid.UUID]dues.DueRecord
	txs     map[uuid.UUID]dues.Transaction
	members map[uuid.UUID]dues.Member

	// saveConflicts makes the next n SaveWithLock calls fail with a version conflict
	saveConflicts int
	// createErr makes Create fail for the given owner
	createErr map[uuid.UUID]error
	// executeCount counts Execute calls
	executeCount int
}

func newMemStore() *memStore {
	return &memStore{
		dues:      make(map[uuid.UUID]dues.DueRecord),
		txs:       make(map[uuid.UUID]dues.Transaction),
		members:   make(map[uuid.UUID]dues.Member),
		createErr: make(map[uuid.UUID]error),
	}
}

func (s *memStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.executeCount++
	dueSnap := make(map[uuid.UUID]dues.DueRecord, len(s.dues))
	for k, v := range s.dues {
		dueSnap[k] = copyDue(v)
	}
	txSnap := make(map[uuid.UUID]dues.Transaction, len(s.txs))
	for k, v := range s.txs {
		txSnap[k] = copyTx(v)
	}
	memberSnap := make(map[uuid.UUID]dues.Member, len(s.members))
	for k, v := range s.members {
		memberSnap[k] = v
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.dues, s.txs, s.members = dueSnap, txSnap, memberSnap
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) DueRepo() dues.DueRecordRepository { return (*memDueRepo)(s) }
func (s *memStore) TransactionRepo() dues.TransactionRepository { return (*memTxRepo)(s) }
func (s *memStore) MemberRepo() dues.MemberRepository { return (*memMemberRepo)(s) }

func copyDue(d dues.DueRecord) dues.DueRecord {
	cp := d
	cp.ClearDomainEvents()
	if d.Period != nil {
		p := *d.Period
		cp.Period = &p
	}
	return cp
}

func copyTx(t dues.Transaction) dues.Transaction {
	cp := t
	cp.ClearDomainEvents()
	cp.Allocations = append([]dues.Allocation{}, t.Allocations...)
	return cp
}

func (s *memStore) addMember(tenantID uuid.UUID, name, fee string) *dues.Member {
	m, err := dues.NewMember(tenantID, uuid.New(), name, dec(fee))
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.members[m.ID] = *m
	s.mu.Unlock()
	return m
}

func (s *memStore) addMonthlyDue(tenantID, ownerID uuid.UUID, month, year int, amount string) *dues.DueRecord {
	p, _ := dues.NewPeriod(month, year)
	due, err := dues.NewMonthlyDue(tenantID, ownerID, p, dec(amount))
	if err != nil {
		panic(err)
	}
	due.CreatedAt = due.CreatedAt.Add(time.Duration(year*12+month) * time.Millisecond)
	s.mu.Lock()
	s.dues[due.ID] = copyDue(*due)
	s.mu.Unlock()
	return due
}

func (s *memStore) addEventDue(tenantID, ownerID uuid.UUID, title, amount string) *dues.DueRecord {
	due, err := dues.NewEventDue(tenantID, ownerID, title, dec(amount))
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.dues[due.ID] = copyDue(*due)
	s.mu.Unlock()
	return due
}

func (s *memStore) due(id uuid.UUID) dues.DueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDue(s.dues[id])
}

func (s *memStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

// memDueRepo

type memDueRepo memStore

func (r *memDueRepo) store() *memStore { return (*memStore)(r) }

func (r *memDueRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.DueRecord, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dues[id]
	if !ok || d.TenantID != tenantID {
		return nil, dues.NewDueNotFoundError(id)
	}
	cp := copyDue(d)
	return &cp, nil
}

func (r *memDueRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*dues.DueRecord, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memDueRepo) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]dues.DueRecord, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dues.DueRecord, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.dues[id]; ok && d.TenantID == tenantID {
			out = append(out, copyDue(d))
		}
	}
	return out, nil
}

func (r *memDueRepo) FindOutstandingByOwner(ctx context.Context, tenantID, ownerID uuid.UUID, kind *dues.DueKind, forUpdate bool) ([]dues.DueRecord, error) {
	s := r.store()
	s.mu.Lock()
	out := make([]dues.DueRecord, 0)
	for _, d := range s.dues {
		if d.TenantID != tenantID || d.OwnerID != ownerID || !d.Status().IsOutstanding() {
			continue
		}
		if kind != nil && d.Kind != *kind {
			continue
		}
		out = append(out, copyDue(d))
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OlderThan(&out[j]) })
	return out, nil
}

func (r *memDueRepo) matching(tenantID uuid.UUID, f dues.DueRecordFilter) []dues.DueRecord {
	s := r.store()
	s.mu.Lock()
	out := make([]dues.DueRecord, 0)
	for _, d := range s.dues {
		if d.TenantID != tenantID {
			continue
		}
		if f.OwnerID != nil && d.OwnerID != *f.OwnerID {
			continue
		}
		if f.Kind != nil && d.Kind != *f.Kind {
			continue
		}
		if f.Status != nil && d.Status() != *f.Status {
			continue
		}
		if f.Title != "" && d.Title != f.Title {
			continue
		}
		if f.Outstanding && !d.Status().IsOutstanding() {
			continue
		}
		out = append(out, copyDue(d))
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memDueRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, f dues.DueRecordFilter) ([]dues.DueRecord, error) {
	return paginate(r.matching(tenantID, f), f.Filter), nil
}

func (r *memDueRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, f dues.DueRecordFilter) (int64, error) {
	return int64(len(r.matching(tenantID, f))), nil
}

func (r *memDueRepo) FindByCohort(ctx context.Context, tenantID uuid.UUID, title string) ([]dues.DueRecord, error) {
	kind := dues.DueKindEvent
	return r.matching(tenantID, dues.DueRecordFilter{Kind: &kind, Title: title}), nil
}

func (r *memDueRepo) FindOwnerIDsWithPeriod(ctx context.Context, tenantID uuid.UUID, period dues.Period) ([]uuid.UUID, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, d := range s.dues {
		if d.TenantID == tenantID && d.Period != nil && *d.Period == period {
			out = append(out, d.OwnerID)
		}
	}
	return out, nil
}

func (r *memDueRepo) Create(ctx context.Context, due *dues.DueRecord) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErr[due.OwnerID]; err != nil {
		return err
	}
	if due.Period != nil {
		for _, d := range s.dues {
			if d.TenantID == due.TenantID && d.OwnerID == due.OwnerID && d.Period != nil && *d.Period == *due.Period {
				return dues.NewDuplicateDueError(due.OwnerID, *due.Period)
			}
		}
	}
	s.dues[due.ID] = copyDue(*due)
	return nil
}

func (r *memDueRepo) SaveWithLock(ctx context.Context, due *dues.DueRecord) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveConflicts > 0 {
		s.saveConflicts--
		return shared.ErrOptimisticLock
	}
	stored, ok := s.dues[due.ID]
	if !ok {
		return dues.NewDueNotFoundError(due.ID)
	}
	if stored.Version != due.Version {
		return shared.ErrOptimisticLock
	}
	due.IncrementVersion()
	s.dues[due.ID] = copyDue(*due)
	return nil
}

func (r *memDueRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dues[id]; !ok {
		return dues.NewDueNotFoundError(id)
	}
	delete(s.dues, id)
	for txID, tx := range s.txs {
		kept := tx.Allocations[:0:0]
		for _, a := range tx.Allocations {
			if a.DueRecordID != id {
				kept = append(kept, a)
			}
		}
		tx.Allocations = kept
		s.txs[txID] = tx
	}
	return nil
}

// memTxRepo

type memTxRepo memStore

func (r *memTxRepo) store() *memStore { return (*memStore)(r) }

func (r *memTxRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.Transaction, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok || t.TenantID != tenantID {
		return nil, dues.ErrTransactionMissing
	}
	cp := copyTx(t)
	return &cp, nil
}

func (r *memTxRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*dues.Transaction, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memTxRepo) matching(tenantID uuid.UUID, f dues.TransactionFilter) []dues.Transaction {
	s := r.store()
	s.mu.Lock()
	out := make([]dues.Transaction, 0)
	for _, t := range s.txs {
		if t.TenantID != tenantID {
			continue
		}
		if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
			continue
		}
		if f.Mode != nil && t.Mode != *f.Mode {
			continue
		}
		out = append(out, copyTx(t))
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *memTxRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, f dues.TransactionFilter) ([]dues.Transaction, error) {
	return paginate(r.matching(tenantID, f), f.Filter), nil
}

func (r *memTxRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, f dues.TransactionFilter) (int64, error) {
	return int64(len(r.matching(tenantID, f))), nil
}

func (r *memTxRepo) FindAllocationsByDue(ctx context.Context, tenantID, dueID uuid.UUID) ([]dues.Allocation, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dues.Allocation
	for _, t := range s.txs {
		for _, a := range t.Allocations {
			if a.DueRecordID == dueID {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (r *memTxRepo) Create(ctx context.Context, tx *dues.Transaction) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = copyTx(*tx)
	return nil
}

func (r *memTxRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txs, id)
	return nil
}

// memMemberRepo

type memMemberRepo memStore

func (r *memMemberRepo) store() *memStore { return (*memStore)(r) }

func (r *memMemberRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.Member, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok || m.TenantID != tenantID {
		return nil, dues.ErrMemberNotFound
	}
	return &m, nil
}

func (r *memMemberRepo) sorted(tenantID uuid.UUID, keep func(dues.Member) bool) []dues.Member {
	s := r.store()
	s.mu.Lock()
	out := make([]dues.Member, 0)
	for _, m := range s.members {
		if m.TenantID == tenantID && keep(m) {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *memMemberRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, f dues.MemberFilter) ([]dues.Member, error) {
	return paginate(r.sorted(tenantID, func(m dues.Member) bool { return !f.ActiveOnly || m.Active }), f.Filter), nil
}

func (r *memMemberRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, f dues.MemberFilter) (int64, error) {
	return int64(len(r.sorted(tenantID, func(m dues.Member) bool { return !f.ActiveOnly || m.Active }))), nil
}

func (r *memMemberRepo) FindActive(ctx context.Context, tenantID uuid.UUID) ([]dues.Member, error) {
	return r.sorted(tenantID, func(m dues.Member) bool { return m.Active }), nil
}

func (r *memMemberRepo) FindActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]dues.Member, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.sorted(tenantID, func(m dues.Member) bool { return m.Active && want[m.ID] }), nil
}

func (r *memMemberRepo) FindTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, m := range s.members {
		if m.Active && !seen[m.TenantID] {
			seen[m.TenantID] = true
			out = append(out, m.TenantID)
		}
	}
	return out, nil
}

func (r *memMemberRepo) Save(ctx context.Context, member *dues.Member) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.ID]; ok {
		return shared.NewDomainError("ALREADY_EXISTS", "Member already exists")
	}
	s.members[member.ID] = *member
	return nil
}

func (r *memMemberRepo) SaveWithLock(ctx context.Context, member *dues.Member) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.members[member.ID]
	if !ok {
		return dues.ErrMemberNotFound
	}
	if stored.Version != member.Version {
		return shared.ErrOptimisticLock
	}
	member.IncrementVersion()
	s.members[member.ID] = *member
	return nil
}

func paginate[T any](items []T, f shared.Filter) []T {
	if f.PageSize <= 0 {
		return items
	}
	lo := f.Offset()
	if lo >= len(items) {
		return []T{}
	}
	return items[lo:min(lo+f.PageSize, len(items))]
}

// MockReportRepository is a testify mock of dues.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) OwnerTotals(ctx context.Context, tenantID uuid.UUID, ownerID *uuid.UUID) ([]dues.OwnerTotals, error) {
	args := m.Called(ctx, tenantID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dues.OwnerTotals), args.Error(1)
}

func (m *MockReportRepository) OwnerLedger(ctx context.Context, tenantID, ownerID uuid.UUID) (*dues.OwnerLedger, error) {
	args := m.Called(ctx, tenantID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dues.OwnerLedger), args.Error(1)
}

func (m *MockReportRepository) PeriodGrid(ctx context.Context, tenantID uuid.UUID, year int) ([]dues.PeriodCell, error) {
	args := m.Called(ctx, tenantID, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dues.PeriodCell), args.Error(1)
}

func (m *MockReportRepository) Overview(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*dues.Overview, error) {
	args := m.Called(ctx, tenantID, dayStart, dayEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dues.Overview), args.Error(1)
}

func (m *MockReportRepository) CohortSummaries(ctx context.Context, tenantID uuid.UUID) ([]dues.CohortSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dues.CohortSummary), args.Error(1)
}

// MockArchiveStore is a testify mock of ArchiveStore
type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	return m.Called(ctx, key, contentType, body).Error(0)
}

func (m *MockArchiveStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

var (
	_ TransactionScope           = (*memStore)(nil)
	_ dues.DueRecordRepository   = (*memDueRepo)(nil)
	_ dues.TransactionRepository = (*memTxRepo)(nil)
	_ dues.MemberRepository      = (*memMemberRepo)(nil)
	_ dues.ReportRepository      = (*MockReportRepository)(nil)
	_ ArchiveStore               = (*MockArchiveStore)(nil)
)
