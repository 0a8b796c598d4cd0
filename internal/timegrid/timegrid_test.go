package timegrid

import (
	"testing"
	"time"

	"turnero/internal/model"
)

func TestStandardSlots(t *testing.T) {
	slots := StandardSlots()
	if len(slots) != 14 {
		t.Fatalf("got %d slots, want 14", len(slots))
	}
	if slots[0] != "11:00" {
		t.Errorf("first slot = %q, want 11:00", slots[0])
	}
	if slots[len(slots)-1] != "17:30" {
		t.Errorf("last slot = %q, want 17:30", slots[len(slots)-1])
	}
}

func TestSlotsCustomRange(t *testing.T) {
	slots := Slots(9, 10, 15)
	want := []string{"09:00", "09:15", "09:30", "09:45"}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, s := range want {
		if slots[i] != s {
			t.Errorf("slot[%d] = %q, want %q", i, slots[i], s)
		}
	}
}

func TestMondayOf(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-08-31", "2026-08-31"}, // a Monday maps to itself
		{"2026-09-01", "2026-08-31"}, // Tuesday
		{"2026-09-06", "2026-08-31"}, // Sunday belongs to the preceding Monday
		{"2026-01-01", "2025-12-29"}, // year boundary
	}
	for _, c := range cases {
		d, err := ParseDate(c.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", c.in, err)
		}
		got := DateKey(MondayOf(d))
		if got != c.want {
			t.Errorf("MondayOf(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestSameWeek(t *testing.T) {
	mon, _ := ParseDate("2026-08-31")
	sun, _ := ParseDate("2026-09-06")
	nextMon, _ := ParseDate("2026-09-07")
	if !SameWeek(mon, sun) {
		t.Error("Monday and following Sunday should share a week")
	}
	if SameWeek(sun, nextMon) {
		t.Error("Sunday and next Monday must not share a week")
	}
}

func TestMondayOfKeepsMidnight(t *testing.T) {
	d := time.Date(2026, 9, 3, 15, 42, 7, 0, time.UTC)
	m := MondayOf(d)
	if m.Hour() != 0 || m.Minute() != 0 || m.Second() != 0 {
		t.Errorf("MondayOf must return midnight, got %v", m)
	}
}

func TestIsOccupied(t *testing.T) {
	appts := []model.Appointment{
		{ID: "a", Date: "2026-09-01", Time: "11:00"},
		{ID: "b", Date: "2026-09-01", Time: "12:30"},
	}
	if !IsOccupied(appts, "2026-09-01", "12:30") {
		t.Error("expected 12:30 to be occupied")
	}
	if IsOccupied(appts, "2026-09-01", "13:00") {
		t.Error("13:00 should be free")
	}
	if IsOccupied(appts, "2026-09-02", "11:00") {
		t.Error("other date should be free")
	}
}
