package registry

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Group is one record of the group database, name:password:gid:members.
type Group struct {
	Name     string
	Password string
	GID      uint32
	Members  []string
}

func (g Group) Key() string { return g.Name }
func (g Group) ID() uint32  { return g.GID }

func (g Group) Equal(o Group) bool {
	return g.Name == o.Name && g.Password == o.Password && g.GID == o.GID && slices.Equal(g.Members, o.Members)
}

// ReadGroups parses the group file at path.
func ReadGroups(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	groups, err := ParseGroups(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return groups, nil
}

// ParseGroups parses group file content. Empty lines are skipped; any other
// line that is not a well formed record is an error, since rewriting a file
// we could not fully read would lose data.
func ParseGroups(data []byte) ([]Group, error) {
	var groups []Group
	err := scanRecords(data, 4, func(line int, fields []string) error {
		gid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("line %d: invalid gid %q", line, fields[2])
		}
		groups = append(groups, Group{
			Name:     fields[0],
			Password: fields[1],
			GID:      uint32(gid),
			Members:  splitList(fields[3]),
		})
		return nil
	})
	return groups, err
}

// FormatGroups serializes groups in the order given.
func FormatGroups(groups []Group) []byte {
	var buf bytes.Buffer
	for _, g := range groups {
		fmt.Fprintf(&buf, "%s:%s:%d:%s\n", g.Name, g.Password, g.GID, strings.Join(g.Members, ","))
	}
	return buf.Bytes()
}

// CarryPasswords returns a copy of desired where each group takes the
// password field of the existing group with the same name. New groups get
// "x", deferring to gshadow.
func CarryPasswords(existing, desired []Group) []Group {
	passwords := make(map[string]string, len(existing))
	for _, g := range existing {
		passwords[g.Name] = g.Password
	}
	out := make([]Group, len(desired))
	for i, g := range desired {
		g.Members = slices.Clone(g.Members)
		if pw, ok := passwords[g.Name]; ok {
			g.Password = pw
		} else if g.Password == "" {
			g.Password = "x"
		}
		out[i] = g
	}
	return out
}

func scanRecords(data []byte, nfields int, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		fields := strings.Split(text, ":")
		if len(fields) != nfields {
			return fmt.Errorf("line %d: expected %d fields, got %d", line, nfields, len(fields))
		}
		if fields[0] == "" {
			return fmt.Errorf("line %d: empty name", line)
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
