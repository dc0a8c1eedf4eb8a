package skill

import (
	"fmt"
	"io/fs"
	"math/rand"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
)

// dialogs renders the .dialog files of one language. Each file holds one
// spoken variant per line, placeholders in {braces} are filled from the
// dialog data.
type dialogs struct {
	lines map[string][]string
	pick  func(n int) int
}

func loadDialogs(locale fs.FS, lang string) (*dialogs, error) {
	dir := path.Join(lang, "dialog")
	entries, err := fs.ReadDir(locale, dir)
	if err != nil {
		return nil, err
	}
	d := &dialogs{lines: map[string][]string{}, pick: rand.Intn}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".dialog") {
			continue
		}
		raw, err := fs.ReadFile(locale, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		d.lines[strings.TrimSuffix(name, ".dialog")] = splitLines(raw)
	}
	return d, nil
}

func splitLines(raw []byte) []string {
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Render picks a variant of the named dialog and fills its placeholders.
// A missing dialog renders as its own name, the way the host degrades when
// a resource file is absent.
func (d *dialogs) Render(name string, data bus.Data) string {
	variants := d.lines[name]
	if len(variants) == 0 {
		log.Warnf("No dialog file for %q", name)
		return name
	}
	line := variants[d.pick(len(variants))]
	return fill(line, data)
}

func fill(line string, data bus.Data) string {
	for key, value := range data {
		line = strings.ReplaceAll(line, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return line
}
