package sources

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kerbaras/mangafetch/pkg/data"
)

var lxSortAliases = map[string]string{
	"updated": LxSortUpdated,
	"created": LxSortCreated,
	"oldest":  LxSortOldest,
	"views":   LxSortViews,
	"name":    LxSortNameAsc,
	"-name":   LxSortNameDesc,
}

var lxStatusAliases = map[string]string{
	"all":       LxStatusAll,
	"ongoing":   LxStatusOngoing,
	"completed": LxStatusCompleted,
}

// FilterOptions is the flag and query-string form of search refinements.
type FilterOptions struct {
	Sort    string
	Status  string
	Author  string
	Genres  []string // Genre names or numeric ids to include
	Exclude []string // Genre names or numeric ids to exclude
}

// FilterList converts the options, rejecting unknown sort orders,
// statuses and genres.
func (o FilterOptions) FilterList() (data.FilterList, error) {
	var filters data.FilterList
	if o.Sort != "" {
		v, ok := lookupAlias(lxSortAliases, o.Sort)
		if !ok {
			return nil, fmt.Errorf("%w: unknown sort %q", ErrBadArguments, o.Sort)
		}
		filters = append(filters, SortFilter{Value: v})
	}
	if o.Status != "" {
		v, ok := lookupAlias(lxStatusAliases, o.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrBadArguments, o.Status)
		}
		filters = append(filters, StatusFilter{Value: v})
	}
	for _, g := range o.Genres {
		id, err := genreID(g)
		if err != nil {
			return nil, err
		}
		filters = append(filters, GenreFilter{ID: id})
	}
	for _, g := range o.Exclude {
		id, err := genreID(g)
		if err != nil {
			return nil, err
		}
		filters = append(filters, GenreFilter{ID: id, Exclude: true})
	}
	if a := strings.TrimSpace(o.Author); a != "" {
		filters = append(filters, AuthorFilter{Value: a})
	}
	return filters, nil
}

// lookupAlias accepts an alias or a raw value of the table.
func lookupAlias(table map[string]string, s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := table[s]; ok {
		return v, true
	}
	for _, v := range table {
		if v == s {
			return v, true
		}
	}
	return "", false
}

func genreID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil && id > 0 {
		return id, nil
	}
	for name, id := range LxMangaGenres {
		if strings.EqualFold(name, s) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown genre %q", ErrBadArguments, s)
}
