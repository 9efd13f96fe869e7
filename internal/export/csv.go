package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// PhotoSeparator joins photo URLs inside one cell
const PhotoSeparator = " | "

// Header is the fixed column order
var Header = []string{"id", "url", "name", "age", "location", "photos", "bio", "scrapedAt"}

// ToDelimitedText renders profiles as comma-separated rows under a header row
// Rows are joined with "\n" and there is no trailing newline
func ToDelimitedText(items []storage.Profile) string {
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, strings.Join(Header, ","))

	for _, p := range items {
		age := ""
		if p.Age != nil {
			age = strconv.Itoa(*p.Age)
		}

		row := []string{
			quote(p.ID),
			quote(p.URL),
			quote(p.Name),
			age,
			quote(p.Location),
			quote(strings.Join(p.Photos, PhotoSeparator)),
			quote(p.Bio),
			quote(p.ScrapedAt),
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return strings.Join(lines, "\n")
}

// quote wraps a cell in double quotes only if it contains a comma, newline or quote
func quote(cell string) string {
	if !strings.ContainsAny(cell, ",\n\"") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// Filename returns the default download name for an export taken at t
func Filename(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("badoo-scrape-%s.csv", stamp)
}

// WriteFile saves an export under dir and returns the full path
// Only the base name of filename is used
func WriteFile(dir, filename, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
