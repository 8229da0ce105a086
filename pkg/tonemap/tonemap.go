// Package tonemap compresses fused radiance down to a displayable
// LDR image via the mdouchement/hdr tone mapping operators.
package tonemap

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/mdouchement/hdr/tmo"
	"github.com/rs/zerolog/log"

	"hdrfuse/pkg/imgio"
	"hdrfuse/pkg/pfs"
)

var Operators = []string{"drago03", "durand", "icam06", "linear", "reinhard05"}

func List() string { return strings.Join(Operators, ", ") }

// The tmo operators keep mutable state during Perform and are not
// safe to run concurrently.
var performMu sync.Mutex

// Perform tone maps a radiance frame with the named operator.
func Perform(f *pfs.Frame, name string) (image.Image, error) {
	src := imgio.NewHDRImage(f)

	var op tmo.ToneMappingOperator
	switch name {
	case "drago03":
		op = tmo.NewDefaultDrago03(src)
	case "durand":
		op = tmo.NewDefaultDurand(src)
	case "icam06":
		op = tmo.NewDefaultICam06(src)
	case "linear":
		op = tmo.NewLinear(src)
	case "reinhard05":
		op = tmo.NewDefaultReinhard05(src)
	default:
		return nil, fmt.Errorf("tonemapper %q not recognized, want one of %s", name, List())
	}

	log.Debug().Str("operator", name).Msg("tone mapping")
	performMu.Lock()
	defer performMu.Unlock()
	return op.Perform(), nil
}
