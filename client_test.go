package docrel

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func openTemp(t *testing.T, path string) *Client {
	t.Helper()
	c, err := New(WithSQLite(path), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func orders() []bson.D {
	return []bson.D{
		{
			{Key: "customer", Value: "Ann"},
			{Key: "total", Value: 12.5},
			{Key: "items", Value: bson.A{
				bson.D{{Key: "sku", Value: "A-1"}, {Key: "qty", Value: int32(2)}},
				bson.D{{Key: "sku", Value: "B-7"}, {Key: "qty", Value: int32(1)}},
			}},
		},
		{
			{Key: "customer", Value: "Bob"},
			{Key: "total", Value: 3.0},
			{Key: "items", Value: bson.A{}},
		},
	}
}

func TestNew_NoStorage(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error when no storage configured")
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := defaultConfig()
	cfg.driver = "unknown"
	if _, _, err := openStorage(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClient_InsertFind(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	dids, err := c.Insert(ctx, "shop", "orders", orders()...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int64{0, 1}, dids); diff != "" {
		t.Errorf("dids mismatch (-want +got):\n%s", diff)
	}

	got, err := c.Find(ctx, "shop", "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Document{{Did: 0, Doc: orders()[0]}, {Did: 1, Doc: orders()[1]}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_EdgeScalarsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	doc := bson.D{
		{Key: "last", Value: primitive.DateTime(253402214400000)},  // 9999-12-31
		{Key: "first", Value: primitive.DateTime(-14831769600000)}, // 1500-01-01
		{Key: "zero", Value: math.Copysign(0, -1)},
		{Key: "nan", Value: math.NaN()},
		{Key: "inf", Value: math.Inf(1)},
	}
	if _, err := c.Insert(ctx, "test", "edges", doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.Find(ctx, "test", "edges")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0].Doc) != len(doc) {
		t.Fatalf("got %v, want one document with %d fields", got, len(doc))
	}
	d := got[0].Doc
	if diff := cmp.Diff(doc[:2], d[:2]); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
	if z, ok := d[2].Value.(float64); !ok || z != 0 || !math.Signbit(z) {
		t.Errorf("zero = %v, want -0", d[2].Value)
	}
	if n, ok := d[3].Value.(float64); !ok || !math.IsNaN(n) {
		t.Errorf("nan = %v, want NaN", d[3].Value)
	}
	if i, ok := d[4].Value.(float64); !ok || !math.IsInf(i, 1) {
		t.Errorf("inf = %v, want +Inf", d[4].Value)
	}
}

func TestClient_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docrel.db")

	c := openTemp(t, path)
	if _, err := c.Insert(ctx, "shop", "orders", orders()...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.CreateIndex(ctx, "shop", "orders", "customer_1", false, Asc("customer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	version := c.MetadataVersion()
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = openTemp(t, path)
	defer c.Close()
	if c.MetadataVersion() != version {
		t.Errorf("version = %d, want %d", c.MetadataVersion(), version)
	}
	dids, err := c.Insert(ctx, "shop", "orders", bson.D{{Key: "customer", Value: "Cid"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dids) != 1 || dids[0] != 2 {
		t.Errorf("dids = %v, want [2]", dids)
	}
	indexes, err := c.ListIndexes("shop", "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []IndexInfo{{Name: "customer_1", Keys: []IndexKey{{Path: "customer"}}}}
	if diff := cmp.Diff(want, indexes); diff != "" {
		t.Errorf("indexes mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Indexes(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	created, err := c.CreateIndex(ctx, "shop", "orders", "sku", true, Asc("items.sku"), Desc("total"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created")
	}
	if _, err := c.CreateIndex(ctx, "shop", "orders", "sku", false, Asc("items.sku")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := c.CreateIndex(ctx, "shop", "orders", "bad", false); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}

	if err := c.DropIndex(ctx, "shop", "orders", "sku"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.DropIndex(ctx, "shop", "orders", "sku"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_UniqueIndexRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	if _, err := c.CreateIndex(ctx, "shop", "users", "email_1", true, Asc("email")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Insert(ctx, "shop", "users", bson.D{{Key: "email", Value: "a@x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Insert(ctx, "shop", "users", bson.D{{Key: "email", Value: "a@x"}}); err == nil {
		t.Fatal("expected unique violation")
	}
	got, err := c.Find(ctx, "shop", "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("documents = %d, want 1", len(got))
	}
}

func TestClient_Drops(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	for _, coll := range []string{"orders", "users"} {
		if _, err := c.Insert(ctx, "shop", coll, bson.D{{Key: "a", Value: int32(1)}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := c.DropCollection(ctx, "shop", "orders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Find(ctx, "shop", "orders"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	dids, err := c.Insert(ctx, "shop", "orders", bson.D{{Key: "a", Value: int32(1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dids[0] != 0 {
		t.Errorf("did after drop = %d, want 0", dids[0])
	}

	if err := c.DropDatabase(ctx, "shop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Find(ctx, "shop", "users"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_InvalidDocument(t *testing.T) {
	c := openTemp(t, filepath.Join(t.TempDir(), "docrel.db"))
	defer c.Close()

	doc := bson.D{{Key: "a", Value: int32(1)}, {Key: "a", Value: int32(2)}}
	if _, err := c.Insert(context.Background(), "shop", "orders", doc); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}
