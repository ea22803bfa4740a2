// Package pose defines the facial pose model shared by the sync engine:
// the coarse 15-viseme vocabulary, the fine 52-channel ARKit blendshape
// vocabulary, and the timed pose events streamed by synthesis providers.
package pose

// Viseme is one of the 15 Oculus lip-sync viseme categories.
type Viseme int

const (
	VisemeSil Viseme = iota // silence
	VisemePP                // p, b, m
	VisemeFF                // f, v
	VisemeTH                // th (dental)
	VisemeDD                // t, d
	VisemeKK                // k, g
	VisemeCH                // ch, j, sh
	VisemeSS                // s, z
	VisemeNN                // n, l
	VisemeRR                // r
	VisemeAA                // a (as in "father")
	VisemeE                 // e (as in "bed")
	VisemeIH                // i (as in "sit")
	VisemeOH                // o (as in "go")
	VisemeOU                // u (as in "boot")
	VisemeCount
)

// visemeChannels follows the Oculus/Ready Player Me morph target naming.
var visemeChannels = [VisemeCount]string{
	"viseme_sil",
	"viseme_PP",
	"viseme_FF",
	"viseme_TH",
	"viseme_DD",
	"viseme_kk",
	"viseme_CH",
	"viseme_SS",
	"viseme_nn",
	"viseme_RR",
	"viseme_aa",
	"viseme_E",
	"viseme_I",
	"viseme_O",
	"viseme_U",
}

// Channel returns the morph-channel name for the viseme, or "" if the
// viseme is out of range.
func (v Viseme) Channel() string {
	if v < 0 || v >= VisemeCount {
		return ""
	}
	return visemeChannels[v]
}

// Valid reports whether the viseme id is within the coarse vocabulary.
func (v Viseme) Valid() bool {
	return v >= 0 && v < VisemeCount
}
