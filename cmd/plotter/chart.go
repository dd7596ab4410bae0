package main

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"trade-analytics-go/internal/client"
	"trade-analytics-go/internal/models"
)

var errNoPoints = errors.New("equity curve is empty")

// newChart draws the equity curve by trade number and, when limits are given,
// the maximum loss limit of each trade's day as a dashed line.
func newChart(title string, points []client.CurvePoint, limits []models.DailyAccountMetrics) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errNoPoints
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Trade Count"
	p.Y.Label.Text = "Equity"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i].X = float64(i)
		pts[i].Y = pt.Balance.InexactFloat64()
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 0, G: 128, B: 255, A: 255}
	line.Width = vg.Points(2)
	scatter.Shape = nil
	p.Add(line)
	p.Legend.Add("balance", line)

	if limitPts := limitSeries(points, limits); len(limitPts) > 0 {
		limitLine, err := plotter.NewLine(limitPts)
		if err != nil {
			return nil, err
		}
		limitLine.Color = color.RGBA{R: 255, G: 0, B: 0, A: 160}
		limitLine.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(limitLine)
		p.Legend.Add("loss limit", limitLine)
	}
	p.Legend.Top = true

	return p, nil
}

// limitSeries maps every curve point onto the loss limit stored for its trade day.
// Points on days without a stored row are skipped.
func limitSeries(points []client.CurvePoint, limits []models.DailyAccountMetrics) plotter.XYs {
	if len(limits) == 0 {
		return nil
	}
	byDay := make(map[string]float64, len(limits))
	for _, row := range limits {
		byDay[row.Date.Format(models.DateFormat)] = row.MaximumLossLimit.InexactFloat64()
	}

	var out plotter.XYs
	for i, pt := range points {
		if limit, ok := byDay[pt.Day()]; ok {
			out = append(out, plotter.XY{X: float64(i), Y: limit})
		}
	}
	return out
}
