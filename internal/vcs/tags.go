package vcs

import (
	"slices"
	"strings"

	"github.com/gydrogen/hydrogit/pkgs/gnu"
	"golang.org/x/mod/semver"
)

// SortTags sorts tags in place: valid semantic versions first in ascending
// version order, then every other tag in GNU version order.
func SortTags(tags []string) {
	slices.SortStableFunc(tags, func(a, b string) int {
		va, vb := semver.IsValid(a), semver.IsValid(b)
		switch {
		case va && vb:
			if c := semver.Compare(a, b); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		case va:
			return -1
		case vb:
			return 1
		}
		if c := gnu.Compare(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}
