package room

import (
	"sync"
	"testing"
)

func TestRoomManager_GetOrCreate(t *testing.T) {
	manager := NewRoomManager()

	room, created := manager.GetOrCreate("R1")
	if room == nil || !created {
		t.Fatal("GetOrCreate should create a missing room")
	}
	if room.ID != "R1" {
		t.Errorf("Expected room ID R1, got %s", room.ID)
	}

	again, created := manager.GetOrCreate("R1")
	if created {
		t.Error("GetOrCreate should not create a room twice")
	}
	if again != room {
		t.Error("GetOrCreate should return the same room instance")
	}

	retrieved, exists := manager.Get("R1")
	if !exists || retrieved != room {
		t.Fatal("Get should find the created room")
	}
}

func TestRoomManager_ConcurrentCreateConverges(t *testing.T) {
	manager := NewRoomManager()

	const workers = 32
	rooms := make([]*Room, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i], _ = manager.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i, r := range rooms {
		if r != rooms[0] {
			t.Fatalf("Worker %d got a different room instance", i)
		}
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 room, got %d", manager.Count())
	}
}

func TestRoomManager_Remove(t *testing.T) {
	manager := NewRoomManager()
	room, _ := manager.GetOrCreate("R1")

	room.Lock()
	manager.Remove("R1", room)
	room.Unlock()

	if !room.Closed() {
		t.Error("Removed room should be marked closed")
	}
	if _, exists := manager.Get("R1"); exists {
		t.Error("Removed room should not be found")
	}
}

func TestRoomManager_RemoveStaleRoomKeepsSuccessor(t *testing.T) {
	manager := NewRoomManager()
	stale, _ := manager.GetOrCreate("R1")

	stale.Lock()
	manager.Remove("R1", stale)
	stale.Unlock()

	successor, created := manager.GetOrCreate("R1")
	if !created || successor == stale {
		t.Fatal("Expected a fresh room after removal")
	}

	// a late second removal of the stale room must not evict the successor
	manager.Remove("R1", stale)
	if current, exists := manager.Get("R1"); !exists || current != successor {
		t.Error("Successor room was evicted by a stale removal")
	}
}

func TestRoomManager_List(t *testing.T) {
	manager := NewRoomManager()
	for _, id := range []string{"c", "a", "b"} {
		manager.GetOrCreate(id)
	}

	rooms := manager.List()
	if len(rooms) != 3 {
		t.Fatalf("Expected 3 rooms, got %d", len(rooms))
	}
	for i, id := range []string{"a", "b", "c"} {
		if rooms[i].ID != id {
			t.Errorf("Expected room %d to be %s, got %s", i, id, rooms[i].ID)
		}
	}
}
