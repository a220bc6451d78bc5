// Package report renders mapped joint vectors as an HTML page of bar
// charts, one chart per image.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/posemap/internal/humanoid"
	"github.com/banshee-data/posemap/internal/posemap"
)

const (
	measuredColor  = "#3e4989"
	defaultedColor = "#b0b0b0"
)

// Entry is one image and its mapping result.
type Entry struct {
	Image  string
	Result posemap.Result
}

// Render writes the HTML report for entries to w.
func Render(w io.Writer, entries []Entry) error {
	page := components.NewPage()
	page.PageTitle = "Humanoid joint report"
	for _, e := range entries {
		page.AddCharts(chart(e))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func WriteFile(path string, entries []Entry) error {
	var buf bytes.Buffer
	if err := Render(&buf, entries); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func chart(e Entry) *charts.Bar {
	title := filepath.Base(e.Image)
	subtitle := "no pose detected"
	if e.Result.Ok() {
		subtitle = fmt.Sprintf("degrees; %d of %d joints defaulted (grey)",
			e.Result.DefaultedCount(), humanoid.NumJoints)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deg", Min: -180, Max: 180}),
	)
	bar.SetXAxis(humanoid.JointNames()).
		AddSeries("joints", barData(e.Result),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// barData is empty for an unmapped result.
func barData(r posemap.Result) []opts.BarData {
	v, ok := r.Get()
	if !ok {
		return []opts.BarData{}
	}
	deg := v.Degrees()
	data := make([]opts.BarData, humanoid.NumJoints)
	for i := range deg {
		c := measuredColor
		if r.Defaulted[i] {
			c = defaultedColor
		}
		data[i] = opts.BarData{
			Name:      humanoid.JointName(i),
			Value:     math.Round(deg[i]*10) / 10,
			ItemStyle: &opts.ItemStyle{Color: c},
		}
	}
	return data
}
