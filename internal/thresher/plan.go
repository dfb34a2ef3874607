package thresher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/obentoo/kthresher/internal/common/config"
)

// ErrNothingToDo is returned when keep covers every discovered version
var ErrNothingToDo = errors.New("nothing to do")

// Plan is the ordered list of versions split at Cut: versions before the
// cut are removed, versions at or after it are retained
type Plan struct {
	Found    []string // distinct versions in string order
	Versions []string
	Keep     int
	Cut      int
}

// Removed returns the versions marked for removal, oldest first
func (p *Plan) Removed() []string {
	return p.Versions[:p.Cut]
}

// Retained returns the versions kept, oldest first
func (p *Plan) Retained() []string {
	return p.Versions[p.Cut:]
}

// PlanRetention sorts the distinct versions of groups ascending with cmp
// and keeps the newest keep of them. Keeping as many versions as were
// found, or more, is a contradiction and fails with ErrNothingToDo.
func PlanRetention(groups VersionGroup, keep int, cmp func(a, b string) int) (*Plan, error) {
	if keep < 0 || keep > config.MaxKeep {
		return nil, fmt.Errorf("%w: got %d", config.ErrInvalidKeep, keep)
	}

	found := groups.Versions()
	sort.Strings(found)

	versions := append([]string(nil), found...)
	sort.SliceStable(versions, func(i, j int) bool {
		return cmp(versions[i], versions[j]) < 0
	})

	if keep >= len(versions) {
		return nil, fmt.Errorf("%w, attempting to keep %d out of %d kernel images", ErrNothingToDo, keep, len(versions))
	}

	return &Plan{
		Found:    found,
		Versions: versions,
		Keep:     keep,
		Cut:      len(versions) - keep,
	}, nil
}
