package usecase

import (
	"math"
	"time"
)

const (
	DefaultWindowDays = 30
	dayFormat         = "2006-01-02"
)

type LeadStats struct {
	Total             int            `json:"total"`
	CurrentPeriod     int            `json:"current_period"`
	PreviousPeriod    int            `json:"previous_period"`
	GrowthPercent     float64        `json:"growth_percent"`
	Converted         int            `json:"converted"`
	ConversionRate    float64        `json:"conversion_rate"`
	ByAttachmentStyle map[string]int `json:"by_attachment_style"`
}

type AILeadStats struct {
	Total              int     `json:"total"`
	CurrentPeriod      int     `json:"current_period"`
	PreviousPeriod     int     `json:"previous_period"`
	GrowthPercent      float64 `json:"growth_percent"`
	Converted          int     `json:"converted"`
	ConversionRate     float64 `json:"conversion_rate"`
	TotalMessages      int64   `json:"total_messages"`
	AvgMessagesPerLead float64 `json:"avg_messages_per_lead"`
}

type RevenueStats struct {
	WindowDays    int              `json:"window_days"`
	Since         time.Time        `json:"since"`
	TotalRevenue  int64            `json:"total_revenue"`
	PurchaseCount int              `json:"purchase_count"`
	DailyRevenue  map[string]int64 `json:"daily_revenue"`
}

// GrowthPercent compares two period counts. An empty previous period yields 0 when the
// current one is empty too and 100 otherwise.
func GrowthPercent(current, previous int) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return round2(float64(current-previous) / float64(previous) * 100)
}

// ConversionRate is converted/total as a percentage, 0 for an empty table.
func ConversionRate(converted, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(converted) / float64(total) * 100)
}

// periodWindows returns the boundaries of the current and previous trailing windows.
func periodWindows(now time.Time, days int) (prevStart, curStart time.Time) {
	span := time.Duration(days) * 24 * time.Hour
	curStart = now.Add(-span)
	prevStart = curStart.Add(-span)
	return prevStart, curStart
}

// DayKey is the UTC calendar day a timestamp is bucketed under.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
