package callbacks

import (
	"errors"
	"strconv"
)

// ErrBadID reports a payload that is not a positive decimal id.
var ErrBadID = errors.New("callback payload is not a positive id")

// PayloadInt64 parses the payload half of callback data as a positive int64 id.
func PayloadInt64(payload string) (int64, error) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadID
	}
	return id, nil
}
