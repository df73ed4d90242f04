package fetcher

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/voyagen/tvplayer/internal/models"
)

var (
	reTvgName   = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgID     = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgLogo   = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reCommaName = regexp.MustCompile(`,([^,\n\r\t]*)$`)
)

var errNoName = errors.New("no name in EXTINF")

// ParseM3U reads an M3U playlist from r and returns one entry per
// EXTINF + URL pair. Entries without a usable name are skipped.
// useTvgID: if true, prefer tvg-id over the comma title when tvg-name is empty.
func ParseM3U(r io.Reader, useTvgID bool) ([]ParsedEntry, error) {
	var entries []ParsedEntry
	scanner := bufio.NewScanner(r)
	// Some playlists carry very long EXTINF lines.
	const maxSize = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxSize)

	var extinf string
	line := 0
	for scanner.Scan() {
		line++
		trimmed := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(strings.ToUpper(trimmed), "#EXTINF"):
			// An EXTINF without a URL line is dropped.
			extinf = trimmed
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			// Directives and blank lines between EXTINF and URL.
		default:
			if extinf == "" {
				continue
			}
			info := extinf
			extinf = ""
			name, err := channelName(info, useTvgID)
			if err != nil {
				continue
			}
			entries = append(entries, ParsedEntry{
				Channel: models.NewChannel(name, trimmed, matchFirst(reTvgLogo, info)),
				Line:    line,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// channelName picks tvg-name, then tvg-id or the comma title depending on useTvgID.
func channelName(extinf string, useTvgID bool) (string, error) {
	if n := matchFirst(reTvgName, extinf); n != "" {
		return n, nil
	}
	id := matchFirst(reTvgID, extinf)
	alt := matchFirst(reCommaName, extinf)
	first, second := alt, id
	if useTvgID {
		first, second = id, alt
	}
	switch {
	case first != "":
		return first, nil
	case second != "":
		return second, nil
	}
	return "", errNoName
}
