package ranking

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
)

// UnknownCity labels reports stored without a city name
const UnknownCity = "Unbekannt"

// CityStat is one row of the city ranking
type CityStat struct {
	Name     string  `json:"name"`
	ZipCode  string  `json:"zip_code,omitempty"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// PhoneStat summarizes every report for one normalized phone number
type PhoneStat struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// NumberStat is one row of the per-city phone number ranking
type NumberStat struct {
	PhoneNumber string  `json:"phone_number"`
	CompanyName string  `json:"company_name,omitempty"`
	Count       int     `json:"count"`
	AvgScore    float64 `json:"avg_score"`
}

// LocationStat counts the reports of one phone number at one location
type LocationStat struct {
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// PhoneProfile describes where and under which names a number was reported
type PhoneProfile struct {
	PhoneNumber  string         `json:"phone_number"`
	CompanyNames []string       `json:"company_names"`
	TotalCount   int            `json:"total_count"`
	AvgScore     float64        `json:"avg_score"`
	Cities       []LocationStat `json:"cities"`
}

// tally accumulates a count and score sum for one group
type tally struct {
	count    int
	scoreSum int
}

func (t *tally) add(score int) {
	t.count++
	t.scoreSum += score
}

func (t tally) avg() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.scoreSum) / float64(t.count)
}

// NormalizePhone strips all whitespace so differently spaced numbers match
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

// Cutoff returns the earliest timestamp included in a window of days ending at now.
// A zero time means no window.
func Cutoff(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// CityStats groups reports by city name. Reports must be in insertion order;
// ties keep the order in which each city first appeared.
func CityStats(reports []database.Report, cutoff time.Time) []CityStat {
	order := make([]string, 0)
	groups := make(map[string]*tally)
	zips := make(map[string]string)

	for _, r := range reports {
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		key := r.CityName
		if key == "" {
			key = UnknownCity
		}
		g, ok := groups[key]
		if !ok {
			g = &tally{}
			groups[key] = g
			zips[key] = r.ZipCode
			order = append(order, key)
		}
		g.add(r.NervScore)
	}

	stats := make([]CityStat, 0, len(order))
	for _, name := range order {
		g := groups[name]
		stats = append(stats, CityStat{
			Name:     name,
			ZipCode:  zips[name],
			Count:    g.count,
			AvgScore: g.avg(),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats
}

// PhoneStats counts the reports for phone after normalization
func PhoneStats(reports []database.Report, phone string) PhoneStat {
	target := NormalizePhone(phone)

	var t tally
	for _, r := range reports {
		if NormalizePhone(r.PhoneNumber) == target {
			t.add(r.NervScore)
		}
	}

	return PhoneStat{Count: t.count, AvgScore: t.avg()}
}

// TopNumbersByCity ranks the raw phone numbers reported in city.
// The most recent non-empty company name is reported for each number.
func TopNumbersByCity(reports []database.Report, city string) []NumberStat {
	order := make([]string, 0)
	groups := make(map[string]*tally)
	companies := make(map[string]string)

	for _, r := range reports {
		if !strings.EqualFold(r.CityName, city) {
			continue
		}
		g, ok := groups[r.PhoneNumber]
		if !ok {
			g = &tally{}
			groups[r.PhoneNumber] = g
			order = append(order, r.PhoneNumber)
		}
		g.add(r.NervScore)
		if r.CompanyName != "" {
			companies[r.PhoneNumber] = r.CompanyName
		}
	}

	stats := make([]NumberStat, 0, len(order))
	for _, phone := range order {
		g := groups[phone]
		stats = append(stats, NumberStat{
			PhoneNumber: phone,
			CompanyName: companies[phone],
			Count:       g.count,
			AvgScore:    g.avg(),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats
}

// BuildPhoneProfile collects every report for phone. It returns false when none match.
func BuildPhoneProfile(reports []database.Report, phone string) (*PhoneProfile, bool) {
	target := NormalizePhone(phone)

	var (
		profile   *PhoneProfile
		total     tally
		order     []string
		locations = make(map[string]*tally)
		seen      = make(map[string]bool)
	)

	for _, r := range reports {
		if NormalizePhone(r.PhoneNumber) != target {
			continue
		}
		if profile == nil {
			profile = &PhoneProfile{PhoneNumber: r.PhoneNumber, CompanyNames: []string{}}
		}
		total.add(r.NervScore)

		key := database.FormatLocation(r.CityName, r.ZipCode)
		g, ok := locations[key]
		if !ok {
			g = &tally{}
			locations[key] = g
			order = append(order, key)
		}
		g.add(r.NervScore)

		if company := strings.TrimSpace(r.CompanyName); company != "" && !seen[company] {
			seen[company] = true
			profile.CompanyNames = append(profile.CompanyNames, company)
		}
	}

	if profile == nil {
		return nil, false
	}

	profile.TotalCount = total.count
	profile.AvgScore = total.avg()
	profile.Cities = make([]LocationStat, 0, len(order))
	for _, name := range order {
		g := locations[name]
		profile.Cities = append(profile.Cities, LocationStat{Name: name, Count: g.count, AvgScore: g.avg()})
	}
	sort.SliceStable(profile.Cities, func(i, j int) bool { return profile.Cities[i].Count > profile.Cities[j].Count })

	return profile, true
}

// Tier classifies a phone number by how often it has been reported
type Tier struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

var (
	TierFirstReport    = Tier{Key: "first_report", Title: "Meldung erfolgreich!"}
	TierRepeatOffender = Tier{Key: "repeat_offender", Title: "Wiederholungstäter!"}
	TierKnownNuisance  = Tier{Key: "known_nuisance", Title: "Bekanntes Ärgernis!"}
	TierMassSpammer    = Tier{Key: "mass_spammer", Title: "Massen-Spammer!"}
)

// TierFor maps a report count to its offender tier
func TierFor(count int) Tier {
	switch {
	case count <= 1:
		return TierFirstReport
	case count <= 10:
		return TierRepeatOffender
	case count <= 50:
		return TierKnownNuisance
	default:
		return TierMassSpammer
	}
}

// ScoreLevel buckets an average score for display
func ScoreLevel(avg float64) string {
	switch {
	case avg > 7:
		return "high"
	case avg > 4:
		return "medium"
	default:
		return "low"
	}
}
