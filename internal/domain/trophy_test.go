package domain

import "testing"

func TestCalculateTrophyLevelBoundaries(t *testing.T) {
	cases := []struct {
		points       int
		wantLevel    int
		wantProgress int
	}{
		{-5, 1, 0},
		{0, 1, 0},
		{59, 1, 98},
		{60, 2, 0},
		{5940, 100, 0},
		{6030, 101, 0},
		{14940, 200, 0},
	}
	for _, c := range cases {
		level, progress := CalculateTrophyLevel(c.points)
		if level != c.wantLevel || progress != c.wantProgress {
			t.Errorf("CalculateTrophyLevel(%d) = (%d, %d), want (%d, %d)",
				c.points, level, progress, c.wantLevel, c.wantProgress)
		}
	}
}

func TestCalculateTrophyLevelExhaustsTable(t *testing.T) {
	level, progress := CalculateTrophyLevel(100_000_000)
	if level != 999 || progress != 100 {
		t.Errorf("CalculateTrophyLevel(huge) = (%d, %d), want (999, 100)", level, progress)
	}
}

func TestTrophyPoints(t *testing.T) {
	got := TrophyPoints(1, 1, 1, 1)
	want := 15 + 30 + 90 + 300
	if got != want {
		t.Errorf("TrophyPoints(1,1,1,1) = %d, want %d", got, want)
	}
	if TrophyPoints(0, 0, 0, 0) != 0 {
		t.Error("TrophyPoints(0,0,0,0) should be 0")
	}
}
