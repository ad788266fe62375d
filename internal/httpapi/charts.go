package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gorilla/mux"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// handleCharts renders the training curves of one team as an HTML page
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	team, err := core.ParseTeam(mux.Vars(r)["team"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, ok := s.source.History(team)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no controller for team "+team.String())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := TrainingPage(stats).Render(w); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render charts")
	}
}

// TrainingPage builds the reward, loss and epsilon curves of a controller
func TrainingPage(stats agent.Stats) *components.Page {
	page := components.NewPage()
	page.AddCharts(
		lineChart(fmt.Sprintf("%s episode reward", stats.Name), "episode", "reward", stats.EpisodeRewards),
		lineChart(fmt.Sprintf("%s loss", stats.Name), "update", "loss", stats.Losses),
		lineChart(fmt.Sprintf("%s epsilon", stats.Name), "episode", "epsilon", stats.EpsilonValues),
	)
	return page
}

func lineChart(title, xName, series string, values []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xName,
		}),
	)

	steps := make([]string, len(values))
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		steps[i] = fmt.Sprintf("%d", i+1)
		items[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(steps).AddSeries(series, items)
	return line
}
