//go:build !geos

package geo

import "github.com/rotisserie/eris"

func newGEOSDiffer() (Differ, error) {
	return nil, eris.New("geo: geos differ requires a binary built with -tags geos")
}
