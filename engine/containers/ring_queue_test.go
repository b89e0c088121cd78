package containers

import (
	"errors"
	"testing"
)

func TestRingQueueOrder(t *testing.T) {
	q := NewRingQueue[int](2)
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	q.Enqueue(1)
	q.Enqueue(2)
	if err := q.Enqueue(3); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if v, _ := q.Dequeue(); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	q.Enqueue(3)
	q.Grow()
	q.Enqueue(4)
	want := []int{2, 3, 4}
	for _, w := range want {
		v, err := q.Dequeue()
		if err != nil || v != w {
			t.Errorf("expected %d, got %d (%v)", w, v, err)
		}
	}
	if !q.IsEmpty() {
		t.Errorf("queue should be empty")
	}
}
