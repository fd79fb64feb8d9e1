package assets

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed balance.yaml help.txt
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// Balance returns the default balance file.
func Balance() ([]byte, error) {
	return FS.ReadFile("balance.yaml")
}

// HelpLines returns the command reference shown by /help.
func HelpLines() ([]string, error) {
	return readLines("help.txt")
}
