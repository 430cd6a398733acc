// Package httptyped holds the JSON shapes of the REST API. Both the server handlers and pkg/apiclient use them.
package httptyped

import (
	"time"

	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
)

// App timestamps are epoch milliseconds.
type App struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	AddedAt     int64    `json:"addedAt"`
	Clicks      int64    `json:"clicks"`
	Featured    bool     `json:"featured"`
	Approved    bool     `json:"approved"`
}

func AppFromSvc(app appsvc.App) App {
	tags := app.Tags
	if tags == nil {
		tags = []string{}
	}

	return App{
		ID:          app.ID,
		Name:        app.Name,
		Description: app.Description,
		URL:         app.URL,
		Category:    app.Category,
		Tags:        tags,
		AddedAt:     app.AddedAt.UnixMilli(),
		Clicks:      app.Clicks,
		Featured:    app.Featured,
		Approved:    app.Approved,
	}
}

func AppsFromSvc(apps []appsvc.App) []App {
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		out = append(out, AppFromSvc(app))
	}

	return out
}

type Report struct {
	ID        string   `json:"id"`
	AppID     string   `json:"appId"`
	AppName   string   `json:"appName"`
	Reasons   []string `json:"reasons"`
	Timestamp int64    `json:"timestamp"`
}

func ReportFromSvc(report reportsvc.Report) Report {
	reasons := report.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	return Report{
		ID:        report.ID,
		AppID:     report.AppID,
		AppName:   report.AppName,
		Reasons:   reasons,
		Timestamp: report.Timestamp.UnixMilli(),
	}
}

func ReportsFromSvc(reports []reportsvc.Report) []Report {
	out := make([]Report, 0, len(reports))
	for _, report := range reports {
		out = append(out, ReportFromSvc(report))
	}

	return out
}

// Health is the body of GET /health, Timestamp is ISO8601.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
