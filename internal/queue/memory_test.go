package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	ctx := context.Background()

	want := Message{JobID: "job-1", DocumentID: "doc-1", Version: 1}
	if err := q.Send(ctx, want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMemoryQueueDelayedVisibility(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()

	msg := Message{JobID: "job-1", DocumentID: "doc-1", Version: 1}
	if err := q.SendDelayed(context.Background(), msg, 20*time.Millisecond); err != nil {
		t.Fatalf("send delayed: %v", err)
	}

	quick, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := q.Receive(quick); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("message visible before its delay: %v", err)
	}

	patient, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.Receive(patient)
	if err != nil {
		t.Fatalf("receive after delay: %v", err)
	}
	if got.JobID != msg.JobID {
		t.Fatalf("got %+v, want %+v", got, msg)
	}
}

func TestMemoryQueueCloseRejectsSends(t *testing.T) {
	q := NewMemoryQueue(4)
	q.Close()
	if err := q.Send(context.Background(), Message{JobID: "job-1"}); err == nil {
		t.Fatal("want error after close")
	}
}
