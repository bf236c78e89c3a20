package controller

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func parseReadingsQuery(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()

	limit = defaultPageSize
	if s := q.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, 0, errors.New("'limit' must be > 0")
		}
		if n > maxPageSize {
			return 0, 0, errors.New("'limit' must be <= 1000")
		}
		limit = n
	}

	if s := q.Get("offset"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, errors.New("invalid 'offset' (expected integer)")
		}
		if n < 0 {
			return 0, 0, errors.New("'offset' must be >= 0")
		}
		offset = n
	}

	return limit, offset, nil
}
