package service

import (
	"encoding/xml"
	"os"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/repository"
)

// TrophyService computes the presence-enriched trophy_level field (§4.6)
// by parsing a user's trophy manifest. XML parsing of trophy manifests
// is an explicit external-collaborator carve-out (spec §1): encoding/xml
// is the standard library's parser and there is no domain-specific
// ecosystem library in the example pack for this narrow, non-core task.
type TrophyService struct {
	storage repository.StorageRepository
}

func NewTrophyService(storage repository.StorageRepository) *TrophyService {
	return &TrophyService{storage: storage}
}

type trophiesXML struct {
	XMLName xml.Name     `xml:"trophies"`
	Trophy  []trophyNode `xml:"trophy"`
}

type trophyNode struct {
	UnlockedCount int `xml:"unlocked_count,attr"`
	Bronze        int `xml:"bronze,attr"`
	Silver        int `xml:"silver,attr"`
	Gold          int `xml:"gold,attr"`
	Platinum      int `xml:"platinum,attr"`
}

// Summary loads and aggregates a user's trophies.xml. A missing file
// yields a zeroed, level-1 summary rather than an error: most accounts
// have not synced trophy data yet.
func (s *TrophyService) Summary(npid string) (*domain.TrophySummary, error) {
	data, err := os.ReadFile(s.storage.TrophySummaryPath(npid))
	summary := &domain.TrophySummary{}
	if err != nil {
		summary.Level, summary.Progress = domain.CalculateTrophyLevel(0)
		return summary, nil
	}

	var parsed trophiesXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		summary.Level, summary.Progress = domain.CalculateTrophyLevel(0)
		return summary, nil
	}

	unlockedSum := 0
	for _, t := range parsed.Trophy {
		unlockedSum += t.UnlockedCount
		summary.Bronze += t.Bronze
		summary.Silver += t.Silver
		summary.Gold += t.Gold
		summary.Platinum += t.Platinum
	}

	if unlockedSum > 0 {
		summary.Total = unlockedSum
	} else {
		summary.Total = summary.Bronze + summary.Silver + summary.Gold + summary.Platinum
	}

	summary.Points = domain.TrophyPoints(summary.Bronze, summary.Silver, summary.Gold, summary.Platinum)
	summary.Level, summary.Progress = domain.CalculateTrophyLevel(summary.Points)
	return summary, nil
}
