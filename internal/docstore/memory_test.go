package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

type testDoc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags,omitempty"`
	Items []string       `json:"items,omitempty"`
}

func TestWriteAndReadOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	want := testDoc{Name: "alpha", Count: 2}
	if err := m.Write(ctx, "things/t1", want); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got testDoc
	if err := m.ReadOnce(ctx, "things/t1", &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// Absent document and absent inner path.
	if err := m.ReadOnce(ctx, "things/none", &got); !errors.Is(err, ErrAbsent) {
		t.Fatalf("absent doc: err = %v, want ErrAbsent", err)
	}
	if err := m.ReadOnce(ctx, "things/t1/missing", &got); !errors.Is(err, ErrAbsent) {
		t.Fatalf("absent inner: err = %v, want ErrAbsent", err)
	}
}

func TestSubPathWriteAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Name: "alpha", Tags: map[string]int{"a": 1}})
	if err := m.Write(ctx, "things/t1/tags/b", 7); err != nil {
		t.Fatalf("sub-path write: %v", err)
	}

	var n int
	if err := m.ReadOnce(ctx, "things/t1/tags/b", &n); err != nil || n != 7 {
		t.Fatalf("sub-path read = %d, %v", n, err)
	}

	// The enclosing document sees the merged tree.
	var doc testDoc
	if err := m.ReadOnce(ctx, "things/t1", &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Tags["a"] != 1 || doc.Tags["b"] != 7 {
		t.Fatalf("tags = %v", doc.Tags)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Name: "alpha", Count: 1})
	if err := m.Update(ctx, "things/t1", map[string]any{"count": 5}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var doc testDoc
	m.ReadOnce(ctx, "things/t1", &doc)
	if doc.Name != "alpha" || doc.Count != 5 {
		t.Fatalf("doc = %+v, want name kept and count merged", doc)
	}

	// Update into a nested path.
	if err := m.Update(ctx, "things/t1/tags", map[string]any{"x": 9}); err != nil {
		t.Fatalf("nested update: %v", err)
	}
	m.ReadOnce(ctx, "things/t1", &doc)
	if doc.Tags["x"] != 9 {
		t.Fatalf("tags = %v", doc.Tags)
	}
}

func TestDeleteListElementLeavesHole(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Items: []string{"a", "b", "c"}})
	if err := m.Delete(ctx, "things/t1/items/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The slot is nulled, not removed: later indices keep their positions.
	var doc struct {
		Items []*string `json:"items"`
	}
	m.ReadOnce(ctx, "things/t1", &doc)
	if len(doc.Items) != 3 {
		t.Fatalf("items = %v, want length preserved", doc.Items)
	}
	if doc.Items[1] != nil {
		t.Fatalf("items[1] = %v, want null hole", *doc.Items[1])
	}
	if *doc.Items[0] != "a" || *doc.Items[2] != "c" {
		t.Fatalf("neighbors disturbed: %v", doc.Items)
	}
}

func TestDeleteWholeDocument(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Name: "alpha"})
	if err := m.Delete(ctx, "things/t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var doc testDoc
	if err := m.ReadOnce(ctx, "things/t1", &doc); !errors.Is(err, ErrAbsent) {
		t.Fatalf("err = %v, want ErrAbsent", err)
	}
}

func collect(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Write(ctx, "things/t1", testDoc{Name: "alpha"})

	ch := make(chan []byte, 8)
	cancel := m.Subscribe("things/t1", func(data []byte) { ch <- data })
	defer cancel()

	var doc testDoc
	if err := json.Unmarshal(collect(t, ch), &doc); err != nil || doc.Name != "alpha" {
		t.Fatalf("initial snapshot = %+v, %v", doc, err)
	}

	m.Write(ctx, "things/t1", testDoc{Name: "beta"})
	if err := json.Unmarshal(collect(t, ch), &doc); err != nil || doc.Name != "beta" {
		t.Fatalf("update snapshot = %+v, %v", doc, err)
	}

	// Deletion notifies with nil.
	m.Delete(ctx, "things/t1")
	if data := collect(t, ch); data != nil {
		t.Fatalf("deletion snapshot = %s, want nil", data)
	}
}

func TestSubscribeInnerPathSeesWholeDocumentWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Write(ctx, "things/t1", testDoc{Count: 1})

	ch := make(chan []byte, 8)
	cancel := m.Subscribe("things/t1/count", func(data []byte) { ch <- data })
	defer cancel()
	collect(t, ch) // initial

	// A write elsewhere in the same document still notifies; the
	// subscriber sees its own slice of the tree.
	m.Write(ctx, "things/t1/name", "renamed")
	var n int
	if err := json.Unmarshal(collect(t, ch), &n); err != nil || n != 1 {
		t.Fatalf("inner value = %d, %v", n, err)
	}

	m.Write(ctx, "things/t1/count", 4)
	if err := json.Unmarshal(collect(t, ch), &n); err != nil || n != 4 {
		t.Fatalf("inner value = %d, %v", n, err)
	}
}

func TestSubscribeCoalescesBursts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Write(ctx, "things/t1", testDoc{Count: 0})

	// A deliberately slow subscriber: the store must never block the
	// writer, intermediate values may be skipped, and deliveries must
	// never go backwards.
	done := make(chan struct{})
	var seen []int
	cancel := m.Subscribe("things/t1", func(data []byte) {
		time.Sleep(10 * time.Millisecond)
		if data == nil {
			close(done)
			return
		}
		var doc testDoc
		json.Unmarshal(data, &doc)
		seen = append(seen, doc.Count)
	})
	defer cancel()

	for i := 1; i <= 50; i++ {
		m.Update(ctx, "things/t1", map[string]any{"count": i})
	}
	m.Delete(ctx, "things/t1")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never saw the deletion")
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("deliveries went backwards: %v", seen)
		}
	}
}

func TestQueryByField(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Name: "alpha"})
	m.Write(ctx, "things/t2", testDoc{Name: "beta"})
	m.Write(ctx, "things/t3", testDoc{Name: "alpha"})
	m.Write(ctx, "others/o1", testDoc{Name: "alpha"})

	docs, err := m.QueryByField(ctx, "things", "name", "alpha")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	for _, raw := range docs {
		var doc testDoc
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Name != "alpha" {
			t.Fatalf("doc = %s", raw)
		}
	}
}

func TestDisconnectCleanup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Write(ctx, "things/t1", testDoc{Name: "alpha"})
	m.Write(ctx, "things/t2", testDoc{Name: "beta"})

	m.ArmOnDisconnect("conn1", "things/t1")
	m.ArmOnDisconnect("conn2", "things/t2")
	m.DisarmOnDisconnect("conn2")

	m.FireDisconnect("conn1")
	m.FireDisconnect("conn2")

	var doc testDoc
	if err := m.ReadOnce(ctx, "things/t1", &doc); !errors.Is(err, ErrAbsent) {
		t.Fatalf("armed path survived: %v", err)
	}
	if err := m.ReadOnce(ctx, "things/t2", &doc); err != nil {
		t.Fatalf("disarmed path deleted: %v", err)
	}

	// Firing twice is harmless.
	m.FireDisconnect("conn1")
}
