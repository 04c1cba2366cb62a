// Package playlist parses extended M3U playlists into channel records.
package playlist

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
)

const (
	headerTag = "#EXTM3U"
	infoTag   = "#EXTINF:"
)

var attrPattern = regexp.MustCompile(`([a-zA-Z0-9-]+)="([^"]*)"`)

// Parse reads an extended M3U playlist and returns its channels. Entries
// without a name or URL are skipped, as is any directive the parser does not
// understand; upstream playlists are too messy for hard failures.
func Parse(r io.Reader, source string) ([]core.Channel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	channels := make([]core.Channel, 0)
	var pending *core.Channel

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line == headerTag || strings.HasPrefix(line, headerTag+" "):
			continue
		case strings.HasPrefix(line, infoTag):
			pending = parseInfo(strings.TrimPrefix(line, infoTag), source)
		case strings.HasPrefix(line, "#"):
			// Unknown directive (#EXTVLCOPT and friends); keep the pending
			// entry so its URL still attaches.
			continue
		default:
			if pending == nil || pending.Name == "" {
				pending = nil
				continue
			}
			pending.URL = line
			channels = append(channels, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return channels, err
	}

	return channels, nil
}

// parseInfo splits an EXTINF payload ("-1 tvg-id="..." ...,Display Name")
// into attributes and display name.
func parseInfo(payload string, source string) *core.Channel {
	name := payload
	attrs := payload
	if idx := strings.LastIndex(payload, ","); idx >= 0 {
		attrs = payload[:idx]
		name = strings.TrimSpace(payload[idx+1:])
	} else {
		attrs = ""
	}
	if name == "" {
		return nil
	}

	ch := &core.Channel{Name: name, Source: source}
	for _, m := range attrPattern.FindAllStringSubmatch(attrs, -1) {
		switch strings.ToLower(m[1]) {
		case "tvg-id":
			ch.ID = m[2]
		case "tvg-logo":
			ch.Logo = m[2]
		case "group-title":
			ch.Group = m[2]
		case "tvg-country":
			ch.Country = m[2]
		}
	}
	return ch
}
