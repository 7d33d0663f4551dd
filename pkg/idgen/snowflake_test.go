package idgen

import (
	"errors"
	"strings"
	"testing"
)

func TestNextIDIncreasing(t *testing.T) {
	seen := make(map[int64]bool)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		prev = id
	}
}

func TestNewGeneratorWorkerID(t *testing.T) {
	for _, id := range []int64{-1, maxWorkerID + 1} {
		if _, err := NewGenerator(id); !errors.Is(err, ErrInvalidWorkerID) {
			t.Errorf("worker %d: err = %v", id, err)
		}
	}

	g, err := NewGenerator(7)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := g.Next()
	if got := (id >> workerIDShift) & maxWorkerID; got != 7 {
		t.Errorf("worker bits = %d", got)
	}
}

func TestClockBackwards(t *testing.T) {
	g, _ := NewGenerator(1)
	clock := epoch + 1000
	g.now = func() int64 { return clock }

	if _, err := g.Next(); err != nil {
		t.Fatal(err)
	}
	clock -= 1000
	if _, err := g.Next(); !errors.Is(err, ErrClockBackwards) {
		t.Fatalf("err = %v, want ErrClockBackwards", err)
	}
}

func TestSequenceWithinMillisecond(t *testing.T) {
	g, _ := NewGenerator(1)
	g.now = func() int64 { return epoch + 5 }

	first, _ := g.Next()
	second, _ := g.Next()
	if second-first != 1 {
		t.Errorf("ids = %d, %d", first, second)
	}
}

func TestGenerateNo(t *testing.T) {
	entryNo := GenerateEntryNo()
	if !strings.HasPrefix(entryNo, "ENT") || len(entryNo) != 3+14+8 {
		t.Errorf("entry no = %q", entryNo)
	}
	if eventNo := GenerateEventNo(); !strings.HasPrefix(eventNo, "EVT") || eventNo == entryNo {
		t.Errorf("event no = %q", eventNo)
	}
	if got := format("ENT", 42); !strings.HasSuffix(got, "00000042") {
		t.Errorf("format = %q", got)
	}
}
