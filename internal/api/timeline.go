package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/timeline"
)

// timeline serves GET /v1/timeline?from=&to=&category=&limit=.
// category may repeat or be comma separated.
func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f timeline.Filter
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			writeJSON(w, errorResponse{Error: "invalid from", Field: "from"}, http.StatusBadRequest)
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			writeJSON(w, errorResponse{Error: "invalid to", Field: "to"}, http.StatusBadRequest)
			return
		}
		f.To = t
	}
	for _, raw := range q["category"] {
		for c := range strings.SplitSeq(raw, ",") {
			typ, err := progress.ParseAchievementType(c)
			if err != nil {
				writeJSON(w, errorResponse{Error: err.Error(), Field: "category"}, http.StatusBadRequest)
				return
			}
			f.Categories = append(f.Categories, typ)
		}
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, errorResponse{Error: "invalid limit", Field: "limit"}, http.StatusBadRequest)
			return
		}
		limit = n
	}

	items := []progress.Achievement{}
	for a := range s.engine.Timeline.Query(OwnerFrom(r.Context()), f) {
		items = append(items, a)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	writeJSON(w, items, http.StatusOK)
}
