package registry

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Shadow is one record of the shadow group database,
// name:password:admins:members.
type Shadow struct {
	Name     string
	Password string
	Admins   []string
	Members  []string
}

// ReadShadows parses the gshadow file at path. A missing file is reported
// as an error matching fs.ErrNotExist, so callers can tell it apart from an
// empty file.
func ReadShadows(path string) ([]Shadow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	shadows, err := ParseShadows(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return shadows, nil
}

// ParseShadows parses gshadow file content.
func ParseShadows(data []byte) ([]Shadow, error) {
	var shadows []Shadow
	err := scanRecords(data, 4, func(_ int, fields []string) error {
		shadows = append(shadows, Shadow{
			Name:     fields[0],
			Password: fields[1],
			Admins:   splitList(fields[2]),
			Members:  splitList(fields[3]),
		})
		return nil
	})
	return shadows, err
}

// FormatShadows serializes shadow records in the order given.
func FormatShadows(shadows []Shadow) []byte {
	var buf bytes.Buffer
	for _, s := range shadows {
		fmt.Fprintf(&buf, "%s:%s:%s:%s\n", s.Name, s.Password, strings.Join(s.Admins, ","), strings.Join(s.Members, ","))
	}
	return buf.Bytes()
}

// SyncShadows brings the shadow records in line with a merged group list.
// Records of groups removed by the merge are dropped, managed groups get
// their member lists copied over, and groups without a record get a locked
// one appended. Records of system groups and unknown names are untouched.
func SyncShadows(shadows []Shadow, groups []Group, changes []Change, rng IDRange) []Shadow {
	removed := make(map[string]bool)
	for _, c := range changes {
		if c.Kind == ChangeRemove {
			removed[c.Name] = true
		}
	}
	byName := make(map[string]Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}

	out := make([]Shadow, 0, len(shadows)+len(groups))
	present := make(map[string]bool, len(shadows))
	for _, s := range shadows {
		if removed[s.Name] {
			continue
		}
		present[s.Name] = true
		if g, ok := byName[s.Name]; ok && rng.Managed(g.GID) {
			s.Admins = slices.Clone(s.Admins)
			s.Members = slices.Clone(g.Members)
		}
		out = append(out, s)
	}
	for _, g := range groups {
		if present[g.Name] {
			continue
		}
		out = append(out, Shadow{Name: g.Name, Password: "!", Members: slices.Clone(g.Members)})
	}
	return out
}
