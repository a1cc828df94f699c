package notification

import "testing"

func TestSendRecordsAndReturnsHistory(t *testing.T) {
	m := NewManager(nil)
	id := m.Send(Trade, "Position closed", "BTC closed at 65000", nil)
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	hist := m.GetHistory(10, 0)
	if len(hist) != 1 || hist[0].ID != id {
		t.Fatalf("expected history to contain the sent notification, got %+v", hist)
	}
	if hist[0].IsRead {
		t.Fatal("expected new notification to start unread")
	}
}

func TestMarkAsReadAndMarkAllAsRead(t *testing.T) {
	m := NewManager(nil)
	id1 := m.Send(Info, "a", "a", nil)
	m.Send(Info, "b", "b", nil)

	m.MarkAsRead(id1)
	hist := m.GetHistory(10, 0)
	for _, n := range hist {
		if n.ID == id1 && !n.IsRead {
			t.Fatal("expected marked notification to be read")
		}
	}

	m.MarkAllAsRead()
	for _, n := range m.GetHistory(10, 0) {
		if !n.IsRead {
			t.Fatalf("expected all notifications read, got %+v", n)
		}
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	m := NewManager(nil)
	var firstID string
	for i := 0; i < historyCapacity+10; i++ {
		id := m.Send(Info, "x", "x", nil)
		if i == 0 {
			firstID = id
		}
	}
	hist := m.GetHistory(historyCapacity+10, 0)
	if len(hist) != historyCapacity {
		t.Fatalf("expected history capped at %d, got %d", historyCapacity, len(hist))
	}
	for _, n := range hist {
		if n.ID == firstID {
			t.Fatal("expected the oldest notification to be evicted")
		}
	}
}
