package homeassistant

// Spoken color names with their reference RGB values. Setting a color passes
// the spoken name straight to Home Assistant, which accepts any CSS3 name;
// this table only answers "what color is the light" from rgb_color.
var spokenColors = []struct {
	name    string
	r, g, b int
}{
	{"white", 255, 255, 255},
	{"black", 0, 0, 0},
	{"gray", 128, 128, 128},
	{"silver", 192, 192, 192},
	{"red", 255, 0, 0},
	{"maroon", 128, 0, 0},
	{"orange", 255, 165, 0},
	{"gold", 255, 215, 0},
	{"yellow", 255, 255, 0},
	{"olive", 128, 128, 0},
	{"lime", 0, 255, 0},
	{"green", 0, 128, 0},
	{"teal", 0, 128, 128},
	{"cyan", 0, 255, 255},
	{"blue", 0, 0, 255},
	{"navy", 0, 0, 128},
	{"purple", 128, 0, 128},
	{"violet", 238, 130, 238},
	{"magenta", 255, 0, 255},
	{"pink", 255, 192, 203},
	{"brown", 165, 42, 42},
}

// SpokenColor names the nearest color to an rgb_color attribute, or ""
// when the value is unusable.
func SpokenColor(rgb []int) string {
	if len(rgb) < 3 {
		return ""
	}
	best := ""
	bestDist := 1 << 30
	for _, c := range spokenColors {
		dr, dg, db := rgb[0]-c.r, rgb[1]-c.g, rgb[2]-c.b
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			best, bestDist = c.name, dist
		}
	}
	return best
}
