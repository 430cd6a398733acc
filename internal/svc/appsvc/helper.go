package appsvc

import (
	"strings"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
)

func AppFromRepo(app apprepo.App) App {
	tags := make([]string, len(app.Tags))
	copy(tags, app.Tags)

	return App{
		ID:          app.ID,
		Name:        app.Name,
		Description: app.Description,
		URL:         app.URL,
		Category:    app.Category,
		Tags:        tags,
		AddedAt:     time.UnixMilli(app.AddedAt).UTC(),
		Clicks:      app.Clicks,
		Featured:    app.Featured,
		Approved:    app.Approved,
	}
}

func appsFromRepo(apps []apprepo.App) []App {
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		out = append(out, AppFromRepo(app))
	}

	return out
}

// matchFilter reports whether app passes the category and the case-insensitive search.
func matchFilter(app apprepo.App, category, search string) bool {
	if category != "" && category != CategoryAll && app.Category != category {
		return false
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}

	if strings.Contains(strings.ToLower(app.Name), search) ||
		strings.Contains(strings.ToLower(app.Description), search) {
		return true
	}

	for _, tag := range app.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}

	return false
}

// validID reports whether id can be an app id. Anything else can never match a row.
func validID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}
