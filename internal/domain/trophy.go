package domain

// TrophySummary aggregates a user's unlocked trophy counts across all
// titles, as parsed from their trophy/trophies.xml.
type TrophySummary struct {
	Total    int `json:"total"`
	Bronze   int `json:"bronze"`
	Silver   int `json:"silver"`
	Gold     int `json:"gold"`
	Platinum int `json:"platinum"`
	Points   int `json:"-"`
	Level    int `json:"level"`
	Progress int `json:"progress"`
}

type trophyBand struct {
	startLevel, pointsPerLevel, startPoints int
}

// trophyTable mirrors the piecewise-linear level curve: 10 bands of 100
// levels each, with an increasing points-per-level cost.
var trophyTable = []trophyBand{
	{1, 60, 0},
	{100, 90, 5940},
	{200, 450, 14940},
	{300, 900, 59940},
	{400, 1350, 149940},
	{500, 1800, 284940},
	{600, 2250, 464940},
	{700, 2700, 689940},
	{800, 3150, 959940},
	{900, 3600, 1274940},
}

// CalculateTrophyLevel maps a weighted point total to a level (1-999) and
// an in-level progress (0-99, or 100 once the table is exhausted).
func CalculateTrophyLevel(points int) (level, progress int) {
	if points < 0 {
		points = 0
	}

	for i, band := range trophyTable {
		bandEnd := band.startPoints + 100*band.pointsPerLevel
		if i+1 < len(trophyTable) {
			bandEnd = trophyTable[i+1].startPoints
		}

		if points >= bandEnd {
			continue
		}

		offset := points - band.startPoints
		level = band.startLevel + offset/band.pointsPerLevel
		progress = (offset % band.pointsPerLevel) * 100 / band.pointsPerLevel
		return level, progress
	}

	return 999, 100
}

// TrophyPoints computes the weighted point total spec §4.6 fixes.
func TrophyPoints(bronze, silver, gold, platinum int) int {
	return 15*bronze + 30*silver + 90*gold + 300*platinum
}
