// Package viewstate is the client side store of the directory: cached apps and reports,
// the active filter and the user actions dispatched to the API.
package viewstate

import (
	"sort"
	"strings"

	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type App = httptyped.App

type Report = httptyped.Report

// CategoryAll disables the category filter.
const CategoryAll = "All"

type Sort string

const (
	SortNewest       Sort = "NEWEST"
	SortPopular      Sort = "POPULAR"
	SortFeatured     Sort = "FEATURED"
	SortAlphabetical Sort = "ALPHABETICAL"
)

var Sorts = []Sort{SortNewest, SortPopular, SortFeatured, SortAlphabetical}

func (s Sort) Valid() bool {
	for _, v := range Sorts {
		if s == v {
			return true
		}
	}

	return false
}

type Filter struct {
	Category string
	Search   string
	Sort     Sort
}

// DefaultFilter is the state of a fresh listing.
func DefaultFilter() Filter {
	return Filter{Category: CategoryAll, Search: "", Sort: SortFeatured}
}

// NewCollator compares names the way a reader of tag expects. A Collator is not safe for concurrent use.
func NewCollator(tag language.Tag) *collate.Collator {
	return collate.New(tag, collate.Loose)
}

// Match reports whether app is visible under f. Unapproved apps never match.
func Match(app App, f Filter) bool {
	if !app.Approved {
		return false
	}

	if f.Category != "" && f.Category != CategoryAll && app.Category != f.Category {
		return false
	}

	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}

	if strings.Contains(strings.ToLower(app.Name), term) || strings.Contains(strings.ToLower(app.Description), term) {
		return true
	}

	for _, tag := range app.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}

	return false
}

// FilterApps returns the apps matching f in their original order.
func FilterApps(apps []App, f Filter) []App {
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		if Match(app, f) {
			out = append(out, app)
		}
	}

	return out
}

// SortApps sorts apps in place. Every mode is stable, equal keys keep their input order.
// Unknown modes leave the order untouched.
func SortApps(apps []App, mode Sort, coll *collate.Collator) {
	switch mode {
	case SortNewest:
		sort.SliceStable(apps, func(i, j int) bool {
			return apps[i].AddedAt > apps[j].AddedAt
		})

	case SortPopular:
		sort.SliceStable(apps, func(i, j int) bool {
			return apps[i].Clicks > apps[j].Clicks
		})

	case SortFeatured:
		sort.SliceStable(apps, func(i, j int) bool {
			if apps[i].Featured != apps[j].Featured {
				return apps[i].Featured
			}
			return apps[i].Clicks > apps[j].Clicks
		})

	case SortAlphabetical:
		if coll == nil {
			coll = NewCollator(language.English)
		}

		sort.SliceStable(apps, func(i, j int) bool {
			return coll.CompareString(apps[i].Name, apps[j].Name) < 0
		})
	}
}
