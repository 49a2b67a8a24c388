package analysis

import (
	"strings"

	"github.com/rotisserie/eris"
)

var errNoLegends = eris.New("analysis: no legend images could be fetched")

// possibleActions splits a multi-line guidance field into items, trimming
// the leading bullet marker from each line.
func possibleActions(muligeTiltak string) []string {
	if muligeTiltak == "" {
		return nil
	}

	var actions []string
	for _, line := range strings.Split(muligeTiltak, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		actions = append(actions, strings.TrimLeft(line, "- "))
	}
	return actions
}
