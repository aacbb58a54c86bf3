package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

type mockRecipientStore struct {
	mu     sync.Mutex
	tags   map[string]bool
	fields map[string]string
}

func newMockRecipientStore() *mockRecipientStore {
	return &mockRecipientStore{tags: map[string]bool{}, fields: map[string]string{}}
}

func (m *mockRecipientStore) GetRecipient(ctx context.Context, id string) (*domain.Recipient, error) {
	return nil, errors.New("not used")
}
func (m *mockRecipientStore) AddTag(ctx context.Context, id string, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[tag] = true
	return nil
}
func (m *mockRecipientStore) RemoveTag(ctx context.Context, id string, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags, tag)
	return nil
}
func (m *mockRecipientStore) SetField(ctx context.Context, id string, field string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[field] = value
	return nil
}

type mockDeliveryLog struct {
	mu      sync.Mutex
	records []domain.DeliveryRecord
}

func (m *mockDeliveryLog) Sent(executionID int64, actionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ExecutionID == executionID && r.ActionID == actionID {
			return true, nil
		}
	}
	return false, nil
}
func (m *mockDeliveryLog) Record(d *domain.DeliveryRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *d)
	return d.ID, nil
}

type mockDeliverer struct {
	sends []string
	err   error
}

func (m *mockDeliverer) Send(ctx context.Context, subject, body, recipientAddress string) error {
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, subject)
	return nil
}

type passthroughRenderer struct{}

func (passthroughRenderer) Render(template string, rcp *domain.Recipient, execCtx map[string]string) (string, error) {
	return template, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c fixedClock) Sleep(d time.Duration)                  {}

func testRequest(action domain.Action) *Request {
	return &Request{
		Execution: &domain.Execution{ID: 7, AutomationID: "auto-1", RecipientID: "r1",
			Context: map[string]string{"campaign": "spring", "item": "desk"}},
		Action:    &action,
		Recipient: &domain.Recipient{ID: "r1", Email: "ada@example.com", FirstName: "Ada"},
	}
}

func TestSendMessageExecutor_SendsAndRecords(t *testing.T) {
	log := &mockDeliveryLog{}
	deliverer := &mockDeliverer{}
	exec := &SendMessageExecutor{
		Renderer:   passthroughRenderer{},
		Deliverer:  deliverer,
		Deliveries: log,
		Clock:      fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	}

	req := testRequest(domain.Action{ID: "send-1", Kind: domain.ActionSendMessage, Subject: "Hi", Template: "Body"})
	if err := exec.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(deliverer.sends) != 1 {
		t.Fatalf("Expected one send, got %d", len(deliverer.sends))
	}
	if len(log.records) != 1 || log.records[0].ActionID != "send-1" || log.records[0].ExecutionID != 7 {
		t.Errorf("Expected a delivery record keyed by execution and action, got %+v", log.records)
	}
}

func TestSendMessageExecutor_SkipsWhenAlreadyDelivered(t *testing.T) {
	log := &mockDeliveryLog{}
	_, _ = log.Record(&domain.DeliveryRecord{ExecutionID: 7, ActionID: "send-1"})
	deliverer := &mockDeliverer{}
	exec := &SendMessageExecutor{
		Renderer:   passthroughRenderer{},
		Deliverer:  deliverer,
		Deliveries: log,
		Clock:      fixedClock{now: time.Now()},
	}

	req := testRequest(domain.Action{ID: "send-1", Kind: domain.ActionSendMessage, Subject: "Hi", Template: "Body"})
	if err := exec.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(deliverer.sends) != 0 {
		t.Errorf("Expected no send for an already-delivered action, got %d", len(deliverer.sends))
	}
	if len(log.records) != 1 {
		t.Errorf("Expected no second record, got %d", len(log.records))
	}
}

func TestSendMessageExecutor_DeliveryErrorLeavesNoRecord(t *testing.T) {
	log := &mockDeliveryLog{}
	exec := &SendMessageExecutor{
		Renderer:   passthroughRenderer{},
		Deliverer:  &mockDeliverer{err: errors.New("relay down")},
		Deliveries: log,
		Clock:      fixedClock{now: time.Now()},
	}

	req := testRequest(domain.Action{ID: "send-1", Kind: domain.ActionSendMessage, Subject: "Hi", Template: "Body"})
	if err := exec.Execute(context.Background(), req); err == nil {
		t.Fatal("Expected a delivery error")
	}
	if len(log.records) != 0 {
		t.Errorf("A failed send must not be recorded, got %d records", len(log.records))
	}
}

func TestTagExecutor_AddAndRemove(t *testing.T) {
	store := newMockRecipientStore()

	add := &TagExecutor{Recipients: store}
	if err := add.Execute(context.Background(), testRequest(domain.Action{ID: "t1", Kind: domain.ActionAddTag, Tag: "vip"})); err != nil {
		t.Fatalf("add returned error: %v", err)
	}
	if !store.tags["vip"] {
		t.Error("Expected tag vip added")
	}

	remove := &TagExecutor{Recipients: store, Remove: true}
	if err := remove.Execute(context.Background(), testRequest(domain.Action{ID: "t2", Kind: domain.ActionRemoveTag, Tag: "vip"})); err != nil {
		t.Fatalf("remove returned error: %v", err)
	}
	if store.tags["vip"] {
		t.Error("Expected tag vip removed")
	}
}

func TestUpdateFieldExecutor_LiteralAndContextValues(t *testing.T) {
	store := newMockRecipientStore()
	exec := &UpdateFieldExecutor{Recipients: store}

	if err := exec.Execute(context.Background(), testRequest(domain.Action{
		ID: "f1", Kind: domain.ActionUpdateField, Field: "plan", Value: "pro",
	})); err != nil {
		t.Fatalf("literal value returned error: %v", err)
	}
	if store.fields["plan"] != "pro" {
		t.Errorf("Expected literal value stored, got %q", store.fields["plan"])
	}

	if err := exec.Execute(context.Background(), testRequest(domain.Action{
		ID: "f2", Kind: domain.ActionUpdateField, Field: "last_campaign", Value: "context.campaign",
	})); err != nil {
		t.Fatalf("context value returned error: %v", err)
	}
	if store.fields["last_campaign"] != "spring" {
		t.Errorf("Expected context-resolved value, got %q", store.fields["last_campaign"])
	}

	err := exec.Execute(context.Background(), testRequest(domain.Action{
		ID: "f3", Kind: domain.ActionUpdateField, Field: "x", Value: "context.missing",
	}))
	if err == nil {
		t.Error("Expected an error for a missing context key")
	}
}

func TestWebhookExecutor_PostsPayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := &WebhookExecutor{Client: server.Client()}
	req := testRequest(domain.Action{ID: "hook-1", Kind: domain.ActionWebhook, URL: server.URL})
	if err := exec.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got.ExecutionID != 7 || got.ActionID != "hook-1" || got.RecipientID != "r1" {
		t.Errorf("Unexpected payload: %+v", got)
	}
	if got.Context["item"] != "desk" {
		t.Errorf("Expected execution context in payload, got %v", got.Context)
	}
}

func TestWebhookExecutor_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	exec := &WebhookExecutor{Client: server.Client()}
	req := testRequest(domain.Action{ID: "hook-1", Kind: domain.ActionWebhook, URL: server.URL})
	if err := exec.Execute(context.Background(), req); err == nil {
		t.Fatal("Expected an error for a 502 response")
	}
}

func TestRegistry_ResolvesEveryKind(t *testing.T) {
	registry := NewRegistry(Deps{
		Recipients: newMockRecipientStore(),
		Deliverer:  &mockDeliverer{},
		Renderer:   passthroughRenderer{},
		Deliveries: &mockDeliveryLog{},
		Clock:      fixedClock{now: time.Now()},
	})
	kinds := []domain.ActionKind{
		domain.ActionSendMessage, domain.ActionAddTag, domain.ActionRemoveTag,
		domain.ActionUpdateField, domain.ActionWait, domain.ActionWebhook, domain.ActionHalt,
	}
	for _, kind := range kinds {
		if _, ok := registry.Resolve(kind); !ok {
			t.Errorf("Expected an executor for kind %q", kind)
		}
	}
	if _, ok := registry.Resolve("launch_rocket"); ok {
		t.Error("Unexpected executor for an unknown kind")
	}
}
