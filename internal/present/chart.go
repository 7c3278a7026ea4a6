// Package present maps view data into chart datasets and table rows.
// Nothing here mutates its input.
package present

import (
	"sort"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
)

// Dataset is one chart.js dataset.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	Fill            bool      `json:"fill"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
}

// LineChart is a time-labelled line chart.
type LineChart struct {
	Labels   []time.Time `json:"labels"`
	Datasets []Dataset   `json:"datasets"`
}

// BarChart is a category-labelled bar chart.
type BarChart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Empty reports whether the chart has no points to draw.
func (c LineChart) Empty() bool { return len(c.Labels) == 0 }

// Empty reports whether the chart has no bars to draw.
func (c BarChart) Empty() bool { return len(c.Labels) == 0 }

const (
	priceColor        = "rgb(75, 192, 192)"
	summaryColor      = "rgb(54, 162, 235)"
	summaryBackground = "rgba(54, 162, 235, 0.5)"
)

// PriceSeries builds the single-series price line for ticker in ascending
// time order. A positive lookback keeps only points no older than lookback
// at now; zero keeps the whole range the backend returned.
func PriceSeries(ticker string, points []core.PricePoint, lookback time.Duration, now time.Time) LineChart {
	kept := make([]core.PricePoint, 0, len(points))
	for _, p := range points {
		if lookback > 0 && now.Sub(p.Timestamp) > lookback {
			continue
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	chart := LineChart{
		Labels: make([]time.Time, len(kept)),
		Datasets: []Dataset{{
			Label:       ticker + " Price",
			Data:        make([]float64, len(kept)),
			BorderColor: priceColor,
			Tension:     0.1,
		}},
	}
	for i, p := range kept {
		chart.Labels[i] = p.Timestamp
		chart.Datasets[0].Data[i] = p.Price
	}
	return chart
}

// SummaryBars builds one bar dataset of counts keyed by group label, in
// backend order.
func SummaryBars(entries []core.SummaryEntry) BarChart {
	chart := BarChart{
		Labels: make([]string, len(entries)),
		Datasets: []Dataset{{
			Label:           "Signal Counts",
			Data:            make([]float64, len(entries)),
			BorderColor:     summaryColor,
			BackgroundColor: summaryBackground,
			BorderWidth:     1,
		}},
	}
	for i, e := range entries {
		chart.Labels[i] = e.Key
		chart.Datasets[0].Data[i] = float64(e.Count)
	}
	return chart
}
