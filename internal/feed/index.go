// Package feed fetches remote plugin repository feeds and flattens them
// into one deduplicated list of plugin records.
package feed

import (
	"bufio"
	"io"
	"os"
	"strings"

	myerrors "github.com/samhoang/myrepo/internal/errors"
)

// CommentPrefix marks a feed index line as a comment
const CommentPrefix = "##"

// ParseIndex reads feed URLs one per line, skipping blanks and comments
func ParseIndex(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// ReadIndex reads the feed index file at path
func ReadIndex(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, myerrors.NewPathError(path, "read feed index", err)
	}
	defer f.Close()

	urls, err := ParseIndex(f)
	if err != nil {
		return nil, myerrors.NewPathError(path, "read feed index", err)
	}
	return urls, nil
}
