package control

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-runewidth"
)

// handleDump renders a human-readable, column-aligned snapshot of the
// workspace (or of one matching prefix) by asking the main socket for the
// raw "name=value" text and reformatting it. With --follow, it keeps the
// connection open and re-dumps whenever the persistence file changes,
// using that write as a coarse out-of-process change signal.
func (s *Server) handleDump(conn net.Conn, rest string) {
	prefix, follow := parseDumpArgs(rest)

	if err := s.writeDump(conn, prefix); err != nil {
		return
	}
	if !follow {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(conn, "ERROR %v\n", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.PersistFilePath); err != nil {
		s.logger.Warn("control: dump --follow: cannot watch persist file", "path", s.cfg.PersistFilePath, "error", err)
		return
	}

	for {
		select {
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			if err := s.writeDump(conn, prefix); err != nil {
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok || err != nil {
				return
			}
		}
	}
}

func parseDumpArgs(rest string) (prefix string, follow bool) {
	for _, f := range strings.Fields(rest) {
		if f == "--follow" {
			follow = true
			continue
		}
		prefix = f
	}
	return prefix, follow
}

func (s *Server) writeDump(conn net.Conn, prefix string) error {
	raw, err := s.svc.Dump(prefix)
	if err != nil {
		_, werr := fmt.Fprintf(conn, "ERROR %v\n", err)
		return werr
	}
	if _, err := conn.Write([]byte(renderDump(raw))); err != nil {
		return err
	}
	_, err = conn.Write([]byte("END\n"))
	return err
}

// renderDump column-aligns "name=value" lines on the widest name, using
// rune width (not byte length) so names with wide runes still line up.
func renderDump(raw string) string {
	trimmed := strings.TrimRight(raw, "\n")
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")

	type row struct{ name, value string }
	rows := make([]row, 0, len(lines))
	width := 0
	for _, line := range lines {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		rows = append(rows, row{name, value})
		if w := runewidth.StringWidth(name); w > width {
			width = w
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(r.name)
		sb.WriteString(strings.Repeat(" ", width-runewidth.StringWidth(r.name)+2))
		sb.WriteString(r.value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
