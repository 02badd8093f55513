package common

import (
	"testing"
	"time"
)

func TestNextDrawTimeBeforeDeadline(t *testing.T) {
	loc := BusinessLocation()

	// 上午 10 点下注，截止应为当天 17:00
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	got := NextDrawTime(now, 17)
	want := time.Date(2024, 3, 15, 17, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextDrawTime = %v, want %v", got, want)
	}
}

func TestNextDrawTimeAfterDeadline(t *testing.T) {
	loc := BusinessLocation()

	// 17:00 整与之后都应滚到次日
	cases := []time.Time{
		time.Date(2024, 3, 15, 17, 0, 0, 0, loc),
		time.Date(2024, 3, 15, 17, 0, 0, 1, loc),
		time.Date(2024, 3, 15, 23, 59, 59, 0, loc),
	}
	want := time.Date(2024, 3, 16, 17, 0, 0, 0, loc)
	for _, now := range cases {
		if got := NextDrawTime(now, 17); !got.Equal(want) {
			t.Fatalf("NextDrawTime(%v) = %v, want %v", now, got, want)
		}
	}
}

func TestNextDrawTimeCrossesMonth(t *testing.T) {
	loc := BusinessLocation()

	now := time.Date(2024, 2, 29, 18, 0, 0, 0, loc)
	got := NextDrawTime(now, 17)
	want := time.Date(2024, 3, 1, 17, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextDrawTime = %v, want %v", got, want)
	}
}

func TestNextDrawTimeConvertsToBusinessZone(t *testing.T) {
	// UTC 16:00 = 约翰内斯堡 18:00（UTC+2，无夏令时），已过截止，滚到次日
	now := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)
	got := NextDrawTime(now, 17)

	loc := BusinessLocation()
	want := time.Date(2024, 3, 16, 17, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextDrawTime = %v, want %v", got, want)
	}
}

func TestGetTodayRange(t *testing.T) {
	loc := BusinessLocation()
	now := time.Date(2024, 3, 15, 13, 30, 0, 0, loc)

	start, end := GetTodayRange(now)
	if end-start != 24*3600 {
		t.Fatalf("range length = %d, want 86400", end-start)
	}
	if start != time.Date(2024, 3, 15, 0, 0, 0, 0, loc).Unix() {
		t.Fatalf("unexpected start: %d", start)
	}
}
