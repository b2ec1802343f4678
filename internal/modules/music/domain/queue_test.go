package domain

import "testing"

func testTrack(title string) Track {
	return NewTrack(title, "https://example.com/"+title, DurationSeconds(180), "Artist", SourceKindStream)
}

func queueOf(titles ...string) Queue {
	q := NewQueue()
	for _, title := range titles {
		q.PushBack(testTrack(title))
	}
	return q
}

func assertOrder(t *testing.T, q *Queue, want []string) {
	t.Helper()
	tracks := q.List()
	if len(tracks) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(tracks), len(want))
	}
	for i, title := range want {
		if tracks[i].Title != title {
			t.Errorf("queue[%d] = %q, want %q", i, tracks[i].Title, title)
		}
	}
}

func TestQueue_PushBackReturnsLength(t *testing.T) {
	q := NewQueue()

	if got := q.PushBack(testTrack("a")); got != 1 {
		t.Errorf("PushBack() = %d, want 1", got)
	}
	if got := q.PushBack(testTrack("b")); got != 2 {
		t.Errorf("PushBack() = %d, want 2", got)
	}
}

func TestQueue_PushFront(t *testing.T) {
	q := queueOf("a", "b")

	if got := q.PushFront(testTrack("c")); got != 3 {
		t.Errorf("PushFront() = %d, want 3", got)
	}
	assertOrder(t, &q, []string{"c", "a", "b"})
}

func TestQueue_PopFront(t *testing.T) {
	q := queueOf("a", "b")

	track := q.PopFront()
	if track == nil || track.Title != "a" {
		t.Fatalf("PopFront() = %v, want track a", track)
	}
	assertOrder(t, &q, []string{"b"})
}

func TestQueue_PopFrontEmpty(t *testing.T) {
	q := NewQueue()

	if track := q.PopFront(); track != nil {
		t.Errorf("PopFront() on empty queue = %v, want nil", track)
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		wantTitle string
		wantOrder []string
	}{
		{
			name:      "removes first track",
			index:     0,
			wantTitle: "a",
			wantOrder: []string{"b", "c"},
		},
		{
			name:      "removes middle track",
			index:     1,
			wantTitle: "b",
			wantOrder: []string{"a", "c"},
		},
		{
			name:      "removes last track",
			index:     2,
			wantTitle: "c",
			wantOrder: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queueOf("a", "b", "c")

			track := q.RemoveAt(tt.index)
			if track == nil || track.Title != tt.wantTitle {
				t.Fatalf("RemoveAt(%d) = %v, want track %q", tt.index, track, tt.wantTitle)
			}
			assertOrder(t, &q, tt.wantOrder)
		})
	}
}

func TestQueue_RemoveAtOutOfBounds(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{name: "negative index", index: -1},
		{name: "index equal to length", index: 2},
		{name: "index past stale snapshot", index: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queueOf("a", "b")

			if track := q.RemoveAt(tt.index); track != nil {
				t.Errorf("RemoveAt(%d) = %v, want nil", tt.index, track)
			}
			assertOrder(t, &q, []string{"a", "b"})
		})
	}
}

func TestQueue_MoveToFront(t *testing.T) {
	q := queueOf("a", "b", "c")

	if !q.MoveToFront(2) {
		t.Fatal("MoveToFront(2) = false, want true")
	}
	assertOrder(t, &q, []string{"c", "a", "b"})
}

func TestQueue_MoveToFrontAlreadyFront(t *testing.T) {
	q := queueOf("a", "b")

	if !q.MoveToFront(0) {
		t.Fatal("MoveToFront(0) = false, want true")
	}
	assertOrder(t, &q, []string{"a", "b"})
}

func TestQueue_MoveToFrontOutOfBounds(t *testing.T) {
	q := queueOf("a", "b")

	if q.MoveToFront(5) {
		t.Error("MoveToFront(5) = true, want false")
	}
	assertOrder(t, &q, []string{"a", "b"})
}

func TestQueue_Clear(t *testing.T) {
	q := queueOf("a", "b")

	q.Clear()

	if !q.IsEmpty() {
		t.Errorf("queue not empty after Clear, len = %d", q.Len())
	}
}

func TestQueue_ListIsCopy(t *testing.T) {
	q := queueOf("a", "b")

	list := q.List()
	list[0] = testTrack("mutated")

	assertOrder(t, &q, []string{"a", "b"})
}
