package calendar

import (
	"hash/fnv"
	"maps"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colors maps a group key to a "#rrggbb" display color.
type Colors map[string]string

// Clone returns a copy that is safe to extend. Cloning nil yields an
// empty, non-nil map.
func (c Colors) Clone() Colors {
	out := make(Colors, len(c))
	maps.Copy(out, c)
	return out
}

// Merge returns c overlaid with pinned. Pinned entries win.
func (c Colors) Merge(pinned Colors) Colors {
	out := c.Clone()
	maps.Copy(out, pinned)
	return out
}

func (c Colors) inUse() map[string]struct{} {
	used := make(map[string]struct{}, len(c))
	for _, v := range c {
		used[strings.ToLower(v)] = struct{}{}
	}
	return used
}

// Hues are spread around the wheel so neighbouring palette slots contrast:
// blue, red, green, yellow, violet, aqua, orange, purple.
var paletteHues = []float64{255, 25, 150, 105, 340, 210, 60, 300}

// Each pass over the hues uses the next chroma/luminance pair.
var paletteShades = []struct{ chroma, lum float64 }{
	{0.62, 0.55},
	{0.45, 0.72},
	{0.55, 0.40},
}

// Palette is the ordered set of generated group colors.
var Palette = buildPalette()

func buildPalette() []string {
	out := make([]string, 0, len(paletteHues)*len(paletteShades))
	for _, shade := range paletteShades {
		for _, h := range paletteHues {
			out = append(out, colorful.Hcl(h, shade.chroma, shade.lum).Clamped().Hex())
		}
	}
	return out
}

// ColorFor picks a palette color for key. The key's hash selects the first
// slot to try; slots whose color is already in used are skipped so groups
// in one result get distinct colors until the palette is exhausted, after
// which the hashed slot is returned as is.
func ColorFor(key string, used map[string]struct{}) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	start := int(h.Sum32() % uint32(len(Palette)))

	for i := range Palette {
		c := Palette[(start+i)%len(Palette)]
		if _, taken := used[c]; !taken {
			return c
		}
	}
	return Palette[start]
}

// ValidColor reports whether s is a "#rgb" or "#rrggbb" hex color.
func ValidColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	_, err := colorful.Hex(s)
	return err == nil
}
