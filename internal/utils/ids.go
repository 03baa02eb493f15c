package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidID is returned by ParseID and ParseIDList for anything that is
// not a positive base-10 integer.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive integer identifier.
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidID
	}
	return uint(n), nil
}

// ParseIDList parses a comma separated list of ids ("1, 2,3"). Whitespace
// around items is ignored, and so are empty items. Duplicates are kept once,
// in order of first appearance.
//
// Example:
//
//	ids, _ := utils.ParseIDList("3, 1,3") // [3 1]
//	_, err := utils.ParseIDList("1,x")    // ErrInvalidID
func ParseIDList(s string) ([]uint, error) {
	var out []uint
	seen := map[uint]struct{}{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseID(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
