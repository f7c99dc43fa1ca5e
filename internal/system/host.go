package system

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Host identifies the operating system from os-release.
type Host struct {
	ID        string
	VersionID string
	IDLike    []string
	Name      string
}

var redHatFamily = []string{"rhel", "centos", "rocky", "almalinux", "fedora"}

// ReadHost parses the os-release file at path.
func ReadHost(path string) (Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Host{}, fmt.Errorf("read os-release: %w", err)
	}
	return ParseOSRelease(data)
}

// ParseOSRelease parses os-release content. Unknown keys are ignored.
func ParseOSRelease(data []byte) (Host, error) {
	var h Host
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Host{}, fmt.Errorf("os-release line %d: missing '='", n)
		}
		value = unquote(value)
		switch key {
		case "ID":
			h.ID = strings.ToLower(value)
		case "VERSION_ID":
			h.VersionID = value
		case "ID_LIKE":
			h.IDLike = strings.Fields(strings.ToLower(value))
		case "PRETTY_NAME":
			h.Name = value
		}
	}
	if err := sc.Err(); err != nil {
		return Host{}, err
	}
	if h.ID == "" {
		h.ID = "linux"
	}
	return h, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		if s, err := strconv.Unquote(`"` + v[1:len(v)-1] + `"`); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}

// RedHatFamily reports whether the host is a Red Hat derivative, either by
// ID or by ID_LIKE.
func (h Host) RedHatFamily() bool {
	if slices.Contains(redHatFamily, h.ID) {
		return true
	}
	for _, like := range h.IDLike {
		if slices.Contains(redHatFamily, like) {
			return true
		}
	}
	return false
}

// MajorVersion returns the leading number of VersionID, or 0.
func (h Host) MajorVersion() int {
	major, _, _ := strings.Cut(h.VersionID, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

func (h Host) String() string {
	if h.Name != "" {
		return h.Name
	}
	if h.VersionID == "" {
		return h.ID
	}
	return h.ID + " " + h.VersionID
}
