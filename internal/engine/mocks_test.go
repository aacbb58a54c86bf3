package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// MockClock returns a controllable time for deterministic suspend checks.
type MockClock struct {
	mu      sync.Mutex
	NowTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.NowTime
}
func (c *MockClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c *MockClock) Sleep(d time.Duration)                  {}
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NowTime = c.NowTime.Add(d)
}

// FakeExecutionRepo is an in-memory execution store with claim semantics
// matching the SQL repository.
type FakeExecutionRepo struct {
	mu    sync.Mutex
	seq   int64
	tick  int64
	clock core.Clock
	rows  map[int64]*domain.Execution
}

func NewFakeExecutionRepo(clock core.Clock) *FakeExecutionRepo {
	return &FakeExecutionRepo{clock: clock, rows: make(map[int64]*domain.Execution)}
}

func (f *FakeExecutionRepo) touch(e *domain.Execution) {
	f.tick++
	e.Modified = time.Unix(0, f.tick)
}

func copyExecution(e *domain.Execution) *domain.Execution {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]string, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

func (f *FakeExecutionRepo) Save(e *domain.Execution) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.ID = f.seq
	row := copyExecution(e)
	f.touch(row)
	f.rows[row.ID] = row
	return row.ID, nil
}

func (f *FakeExecutionRepo) FindByID(id int64) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyExecution(f.rows[id]), nil
}

func (f *FakeExecutionRepo) FindDueExecutions(size int, engineGroup string) (*[]domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	var due []domain.Execution
	for _, e := range f.rows {
		if len(due) >= size {
			break
		}
		if e.Status.Terminal() || e.ClaimedBy.Valid || !e.NextWakeAt.Valid {
			continue
		}
		if e.EngineGroup != engineGroup {
			continue
		}
		if !e.NextWakeAt.Time.After(now) {
			due = append(due, *copyExecution(e))
		}
	}
	return &due, nil
}

func (f *FakeExecutionRepo) ClaimExecution(id int64, runnerID int64, modified time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.ClaimedBy.Valid || !e.Modified.Equal(modified) {
		return false
	}
	e.ClaimedBy = sql.NullInt64{Int64: runnerID, Valid: true}
	e.NextWakeAt.Valid = false
	f.touch(e)
	return true
}

func (f *FakeExecutionRepo) ClearClaim(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].ClaimedBy.Valid = false
	f.touch(f.rows[id])
	return nil
}

func (f *FakeExecutionRepo) MarkRunning(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.rows[id]
	if e.Status == domain.ExecutionPending {
		e.Status = domain.ExecutionRunning
		e.Started.Time = f.clock.Now()
		e.Started.Valid = true
		f.touch(e)
	}
	return nil
}

func (f *FakeExecutionRepo) UpdateCursor(id int64, actionIndex int, wake *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.rows[id]
	e.ActionIndex = actionIndex
	if wake != nil {
		e.NextWakeAt.Time = *wake
		e.NextWakeAt.Valid = true
		e.ClaimedBy.Valid = false
	} else {
		e.NextWakeAt.Valid = false
	}
	f.touch(e)
	return nil
}

func (f *FakeExecutionRepo) Suspend(id int64, wake time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.rows[id]
	e.NextWakeAt.Time = wake
	e.NextWakeAt.Valid = true
	e.ClaimedBy.Valid = false
	f.touch(e)
	return nil
}

func (f *FakeExecutionRepo) terminate(id int64, status domain.ExecutionStatus, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.rows[id]
	if e.Status.Terminal() {
		return
	}
	e.Status = status
	e.Completed.Time = f.clock.Now()
	e.Completed.Valid = true
	e.NextWakeAt.Valid = false
	e.ClaimedBy.Valid = false
	if detail != "" {
		e.ErrorDetail.String = detail
		e.ErrorDetail.Valid = true
	}
	f.touch(e)
}

func (f *FakeExecutionRepo) MarkCompleted(id int64) error {
	f.terminate(id, domain.ExecutionCompleted, "")
	return nil
}

func (f *FakeExecutionRepo) MarkFailed(id int64, detail string) error {
	f.terminate(id, domain.ExecutionFailed, detail)
	return nil
}

func (f *FakeExecutionRepo) MarkStopped(id int64) error {
	f.terminate(id, domain.ExecutionStopped, "")
	return nil
}

func (f *FakeExecutionRepo) SaveContext(id int64, contextJSON string) error {
	return nil
}

func (f *FakeExecutionRepo) CountTerminal(automationID, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.rows {
		if e.AutomationID == automationID && e.RecipientID == recipientID && e.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (f *FakeExecutionRepo) HasActive(automationID, recipientID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.AutomationID == automationID && e.RecipientID == recipientID && !e.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeExecutionRepo) FindStuckExecutions(cutoffMinutes int, engineGroup string, limit int) (*[]domain.Execution, error) {
	return &[]domain.Execution{}, nil
}

func (f *FakeExecutionRepo) ReleaseStuck(id int64, modified time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || !e.Modified.Equal(modified) {
		return false
	}
	e.ClaimedBy.Valid = false
	e.NextWakeAt.Time = f.clock.Now()
	e.NextWakeAt.Valid = true
	f.touch(e)
	return true
}

func (f *FakeExecutionRepo) Search(req models.SearchExecutionsRequest) (*[]domain.Execution, error) {
	return &[]domain.Execution{}, nil
}

// MockAutomationRepo is a func-field mock for definition persistence.
type MockAutomationRepo struct {
	SaveVersionFunc      func(a *domain.Automation) error
	UpdateStatusFunc     func(id string, status domain.AutomationStatus) error
	FindLatestFunc       func(id string) (*domain.Automation, error)
	FindVersionFunc      func(id string, version int) (*domain.Automation, error)
	FindAllLatestFunc    func() (*[]domain.Automation, error)
	IncrementedIDs       []string
	RecordedCompletions  []float64
	mu                   sync.Mutex
}

func (m *MockAutomationRepo) SaveVersion(a *domain.Automation) error {
	if m.SaveVersionFunc != nil {
		return m.SaveVersionFunc(a)
	}
	return nil
}
func (m *MockAutomationRepo) UpdateStatus(id string, status domain.AutomationStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(id, status)
	}
	return nil
}
func (m *MockAutomationRepo) FindLatest(id string) (*domain.Automation, error) {
	if m.FindLatestFunc != nil {
		return m.FindLatestFunc(id)
	}
	return nil, nil
}
func (m *MockAutomationRepo) FindVersion(id string, version int) (*domain.Automation, error) {
	if m.FindVersionFunc != nil {
		return m.FindVersionFunc(id, version)
	}
	return nil, nil
}
func (m *MockAutomationRepo) FindAllLatest() (*[]domain.Automation, error) {
	if m.FindAllLatestFunc != nil {
		return m.FindAllLatestFunc()
	}
	return &[]domain.Automation{}, nil
}
func (m *MockAutomationRepo) IncrementTriggered(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementedIDs = append(m.IncrementedIDs, id)
	return nil
}
func (m *MockAutomationRepo) RecordCompletion(id string, minutes float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedCompletions = append(m.RecordedCompletions, minutes)
	return nil
}

// MockRecipientStore is a func-field mock implementing core.RecipientStore.
type MockRecipientStore struct {
	GetRecipientFunc func(ctx context.Context, id string) (*domain.Recipient, error)
	AddTagFunc       func(ctx context.Context, id string, tag string) error
	RemoveTagFunc    func(ctx context.Context, id string, tag string) error
	SetFieldFunc     func(ctx context.Context, id string, field string, value string) error
}

func (m *MockRecipientStore) GetRecipient(ctx context.Context, id string) (*domain.Recipient, error) {
	if m.GetRecipientFunc != nil {
		return m.GetRecipientFunc(ctx, id)
	}
	return nil, core.ErrRecipientNotFound
}
func (m *MockRecipientStore) AddTag(ctx context.Context, id string, tag string) error {
	if m.AddTagFunc != nil {
		return m.AddTagFunc(ctx, id, tag)
	}
	return nil
}
func (m *MockRecipientStore) RemoveTag(ctx context.Context, id string, tag string) error {
	if m.RemoveTagFunc != nil {
		return m.RemoveTagFunc(ctx, id, tag)
	}
	return nil
}
func (m *MockRecipientStore) SetField(ctx context.Context, id string, field string, value string) error {
	if m.SetFieldFunc != nil {
		return m.SetFieldFunc(ctx, id, field, value)
	}
	return nil
}

// FakeDeliveryRepo is an in-memory delivery log.
type FakeDeliveryRepo struct {
	mu      sync.Mutex
	Records []domain.DeliveryRecord
}

func (f *FakeDeliveryRepo) Record(d *domain.DeliveryRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records = append(f.Records, *d)
	return d.ID, nil
}

func (f *FakeDeliveryRepo) Sent(executionID int64, actionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Records {
		if r.ExecutionID == executionID && r.ActionID == actionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeDeliveryRepo) CountSince(recipientID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.Records {
		if r.RecipientID == recipientID && !r.SentAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *FakeDeliveryRepo) FindByExecution(executionID int64) (*[]domain.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, r := range f.Records {
		if r.ExecutionID == executionID {
			out = append(out, r)
		}
	}
	return &out, nil
}

// MockDeliverer records sends.
type MockDeliverer struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, subject, body, recipientAddress string) error
	Sends    []string
}

func (m *MockDeliverer) Send(ctx context.Context, subject, body, recipientAddress string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, subject, body, recipientAddress); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sends = append(m.Sends, subject+" -> "+recipientAddress)
	return nil
}

// MockRenderer passes templates through untouched.
type MockRenderer struct{}

func (MockRenderer) Render(template string, rcp *domain.Recipient, execCtx map[string]string) (string, error) {
	return template, nil
}

// MockRunnerRepo is a func-field mock for runner registration.
type MockRunnerRepo struct {
	SaveFunc                func(rn *domain.Runner) (int64, error)
	UpdateLastActiveFunc    func(id int64, ts time.Time) error
	RunnersByLastActiveFunc func(limit int) ([]*domain.Runner, error)
}

func (m *MockRunnerRepo) Save(rn *domain.Runner) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(rn)
	}
	return 1, nil
}
func (m *MockRunnerRepo) UpdateLastActive(id int64, ts time.Time) error {
	if m.UpdateLastActiveFunc != nil {
		return m.UpdateLastActiveFunc(id, ts)
	}
	return nil
}
func (m *MockRunnerRepo) RunnersByLastActive(limit int) ([]*domain.Runner, error) {
	if m.RunnersByLastActiveFunc != nil {
		return m.RunnersByLastActiveFunc(limit)
	}
	return nil, nil
}
