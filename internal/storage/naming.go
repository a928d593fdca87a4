package storage

import (
	"errors"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var ErrNotFound = errors.New("object not found")

const timestampLayout = "20060102150405"

// TimestampKey names the object for a local file as <prefix>/<stem>_<YYYYMMDDHHMMSS><ext>.
func TimestampKey(prefix, file string, t time.Time) string {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + "_" + t.Format(timestampLayout) + ext
	if prefix == "" {
		return name
	}
	return path.Join(strings.Trim(prefix, "/"), name)
}

var timestampSuffix = regexp.MustCompile(`^(.*)_(\d{14})(\.[^.]*)?$`)

// Versions returns the objects named by TimestampKey for file under prefix,
// newest first.
func Versions(objects []Object, prefix, file string) []Object {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	dir := strings.Trim(prefix, "/")

	type version struct {
		obj Object
		ts  string
	}
	var found []version
	for _, obj := range objects {
		objDir := path.Dir(obj.Name)
		if objDir == "." {
			objDir = ""
		}
		if objDir != dir {
			continue
		}
		m := timestampSuffix.FindStringSubmatch(path.Base(obj.Name))
		if m == nil || m[1] != stem || m[3] != ext {
			continue
		}
		found = append(found, version{obj: obj, ts: m[2]})
	}

	slices.SortFunc(found, func(a, b version) int { return strings.Compare(b.ts, a.ts) })
	out := make([]Object, len(found))
	for i, v := range found {
		out[i] = v.obj
	}
	return out
}

// Latest returns the newest object named by TimestampKey for file under
// prefix.
func Latest(objects []Object, prefix, file string) (Object, error) {
	versions := Versions(objects, prefix, file)
	if len(versions) == 0 {
		return Object{}, ErrNotFound
	}
	return versions[0], nil
}
