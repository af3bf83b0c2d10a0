package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-table-orderflow/internal/aws/awstest"
)

func newTestStore(t *testing.T) (*Store, *awstest.FakeDynamoDB, *time.Time) {
	t.Helper()
	fake := awstest.NewFakeDynamoDB()
	fake.CreateTable("idempotency-table", "idempotency_key", "")
	now := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	s := NewStore(fake, "idempotency-table", 48*time.Hour)
	s.nowFunc = func() time.Time { return now }
	return s, fake, &now
}

func TestCreateIfNotExists_Get_MarkDone(t *testing.T) {
	s, fake, _ := newTestStore(t)
	ctx := context.Background()
	key := "test-key-1"
	fp := Fingerprint([]byte(`{"table":"5"}`))

	created, err := s.CreateIfNotExists(ctx, key, fp)
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (in progress)
	created2, err := s.CreateIfNotExists(ctx, key, fp)
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.Fingerprint != fp {
		t.Fatalf("fingerprint mismatch")
	}

	if err := s.MarkDone(ctx, key, "ORD-20260314-0001", `{"success":true}`, 200); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	items := fake.Items("idempotency-table")
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if st, ok := items[0]["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", items[0]["status"])
	}
	if rb, ok := items[0]["response_body"].(*types.AttributeValueMemberS); !ok || rb.Value != `{"success":true}` {
		t.Fatalf("response_body not set correctly: %+v", items[0]["response_body"])
	}

	// a finished key is never reclaimed
	created3, err := s.CreateIfNotExists(ctx, key, fp)
	if err != nil {
		t.Fatalf("third CreateIfNotExists error: %v", err)
	}
	if created3 {
		t.Fatalf("expected DONE record to be kept")
	}
	rec, _ = s.Get(ctx, key)
	if rec.OrderID != "ORD-20260314-0001" || rec.ResponseStatus != 200 {
		t.Fatalf("unexpected record after done: %+v", rec)
	}
}

func TestMarkFailed_AllowsRetry(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateIfNotExists(ctx, "k", "fp-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkFailed(ctx, "k", "table occupied"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	rec, _ := s.Get(ctx, "k")
	if rec.Status != StatusFailed || rec.Note != "table occupied" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	created, err := s.CreateIfNotExists(ctx, "k", "fp-2")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !created {
		t.Fatalf("expected failed key to be reclaimed")
	}
	rec, _ = s.Get(ctx, "k")
	if rec.Status != StatusInProgress || rec.Fingerprint != "fp-2" || rec.Note != "" {
		t.Fatalf("unexpected reclaimed record: %+v", rec)
	}
}

func TestCreateIfNotExists_ReclaimsExpired(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateIfNotExists(ctx, "k", "fp"); err != nil {
		t.Fatalf("create: %v", err)
	}
	*now = now.Add(49 * time.Hour)

	created, err := s.CreateIfNotExists(ctx, "k", "fp")
	if err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
	if !created {
		t.Fatalf("expected expired key to be reclaimed")
	}
}

func TestCreateIfNotExists_PropagatesErrors(t *testing.T) {
	s, fake, _ := newTestStore(t)
	boom := errors.New("throttled")
	fake.FailWith("PutItem", boom)

	_, err := s.CreateIfNotExists(context.Background(), "k", "fp")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped throttle error, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	s, _, _ := newTestStore(t)
	rec, err := s.Get(context.Background(), "nope")
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", rec, err)
	}
}

func TestKeyContext(t *testing.T) {
	ctx := context.Background()
	if KeyFrom(ctx) != "" {
		t.Fatalf("expected empty key")
	}
	if KeyFrom(WithKey(ctx, "")) != "" {
		t.Fatalf("empty key should not be stored")
	}
	if got := KeyFrom(WithKey(ctx, "abc")); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestRecord_AttributevalueRoundTrip(t *testing.T) {
	rec := Record{
		IdempotencyKey: "k1",
		Status:         StatusInProgress,
		Fingerprint:    Fingerprint([]byte("x")),
		CreatedAt:      time.Now().Round(time.Second),
		UpdatedAt:      time.Now().Round(time.Second),
		ExpiresAt:      time.Now().Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Record
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.IdempotencyKey != rec.IdempotencyKey || out.Fingerprint != rec.Fingerprint {
		t.Fatalf("unmarshal mismatch")
	}
}
