package clock

import (
	"testing"
	"time"
)

// --- ParseHHMM ---

func TestParseHHMM_TwoDigitHour(t *testing.T) {
	h, m, ok := ParseHHMM("09:30")
	if !ok || h != 9 || m != 30 {
		t.Errorf("expected (9, 30, true), got (%d, %d, %v)", h, m, ok)
	}
}

func TestParseHHMM_OneDigitHour(t *testing.T) {
	h, m, ok := ParseHHMM("9:05")
	if !ok || h != 9 || m != 5 {
		t.Errorf("expected (9, 5, true), got (%d, %d, %v)", h, m, ok)
	}
}

func TestParseHHMM_MidnightAndEndOfDay(t *testing.T) {
	if _, _, ok := ParseHHMM("0:00"); !ok {
		t.Error("expected 0:00 to parse")
	}
	if h, m, ok := ParseHHMM("23:59"); !ok || h != 23 || m != 59 {
		t.Errorf("expected (23, 59, true), got (%d, %d, %v)", h, m, ok)
	}
}

func TestParseHHMM_HourOutOfRange(t *testing.T) {
	if _, _, ok := ParseHHMM("24:00"); ok {
		t.Error("expected 24:00 to be rejected")
	}
}

func TestParseHHMM_MinuteOutOfRange(t *testing.T) {
	if _, _, ok := ParseHHMM("12:60"); ok {
		t.Error("expected 12:60 to be rejected")
	}
}

func TestParseHHMM_OneDigitMinute(t *testing.T) {
	if _, _, ok := ParseHHMM("12:5"); ok {
		t.Error("expected single-digit minute to be rejected")
	}
}

func TestParseHHMM_Empty(t *testing.T) {
	if _, _, ok := ParseHHMM(""); ok {
		t.Error("expected empty string to be rejected")
	}
}

func TestParseHHMM_WrongSeparator(t *testing.T) {
	if _, _, ok := ParseHHMM("12.30"); ok {
		t.Error("expected 12.30 to be rejected")
	}
}

func TestParseHHMM_Garbage(t *testing.T) {
	if _, _, ok := ParseHHMM("ab:cd"); ok {
		t.Error("expected ab:cd to be rejected")
	}
}

func TestParseHHMM_TrimsWhitespace(t *testing.T) {
	h, m, ok := ParseHHMM(" 08:15 ")
	if !ok || h != 8 || m != 15 {
		t.Errorf("expected (8, 15, true), got (%d, %d, %v)", h, m, ok)
	}
}

// --- InQuietHours ---

func at(hour, min int) time.Time {
	return time.Date(2024, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestInQuietHours_SimpleWindow(t *testing.T) {
	if !InQuietHours(at(13, 0), "12:00-14:00") {
		t.Error("13:00 should be inside 12:00-14:00")
	}
	if InQuietHours(at(15, 0), "12:00-14:00") {
		t.Error("15:00 should be outside 12:00-14:00")
	}
}

func TestInQuietHours_BoundariesInclusive(t *testing.T) {
	if !InQuietHours(at(12, 0), "12:00-14:00") {
		t.Error("start boundary should be inside")
	}
	if !InQuietHours(at(14, 0), "12:00-14:00") {
		t.Error("end boundary should be inside")
	}
}

func TestInQuietHours_Wraparound(t *testing.T) {
	if !InQuietHours(at(23, 30), "22:00-06:00") {
		t.Error("23:30 should be inside 22:00-06:00")
	}
	if !InQuietHours(at(5, 0), "22:00-06:00") {
		t.Error("05:00 should be inside 22:00-06:00")
	}
	if InQuietHours(at(12, 0), "22:00-06:00") {
		t.Error("12:00 should be outside 22:00-06:00")
	}
}

func TestInQuietHours_WraparoundBoundaries(t *testing.T) {
	if !InQuietHours(at(22, 0), "22:00-06:00") {
		t.Error("22:00 should be inside its own window")
	}
	if !InQuietHours(at(6, 0), "22:00-06:00") {
		t.Error("06:00 should be inside its own window")
	}
}

func TestInQuietHours_Empty(t *testing.T) {
	if InQuietHours(at(12, 0), "") {
		t.Error("empty window should never be quiet")
	}
}

func TestInQuietHours_Malformed(t *testing.T) {
	for _, w := range []string{"12:00", "12:00-", "-14:00", "25:00-14:00", "12:00-14:60", "noon-2pm"} {
		if InQuietHours(at(13, 0), w) {
			t.Errorf("malformed window %q should never be quiet", w)
		}
	}
}
