package geo

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"

	"github.com/matzehuels/pairnull/pkg/errors"
)

// CRS identifies a coordinate reference system. It is a plain value that is
// passed into and returned from every adapter call; nothing in this module
// keeps a "current" reference system.
//
// The zero value means "not declared". Declared values are canonical:
// EPSG codes render as "EPSG:<code>" and PROJ strings have their parameters
// sorted. Use [CRS.Equal] to compare PROJ definitions that differ only in
// number formatting.
type CRS string

// WGS84 is the geographic reference system most occurrence data ships in.
const WGS84 CRS = "EPSG:4326"

var geographicEPSG = map[int]bool{
	4326: true, // WGS 84
	4269: true, // NAD83
	4258: true, // ETRS89
	4267: true, // NAD27
	4283: true, // GDA94
	4617: true, // NAD83(CSRS)
	4674: true, // SIRGAS 2000
	7844: true, // GDA2020
}

var equalAreaEPSG = map[int]bool{
	6933: true, // WGS 84 / NSIDC EASE-Grid 2.0 Global
	3410: true, // NSIDC EASE-Grid Global
	3035: true, // ETRS89-extended / LAEA Europe
	5070: true, // NAD83 / Conus Albers
	9822: true, // Albers Equal Area method code
	8857: true, // WGS 84 / Equal Earth Greenwich
}

var equalAreaProj = []string{"laea", "cea", "aea", "moll", "eck4", "sinu", "eqearth"}

// projDigits is the precision, in significant digits, at which two PROJ
// definitions are considered the same.
const projDigits = 9

// ParseCRS canonicalises a user-supplied reference system identifier.
//
// Accepted forms:
//   - "" (undeclared)
//   - "4326", "epsg:4326", "EPSG:4326"
//   - "WGS84", "WGS 84", "CRS84"
//   - PROJ strings such as "+proj=longlat +datum=WGS84 +no_defs"
//
// Anything else fails with INVALID_CRS.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	switch strings.ToUpper(strings.ReplaceAll(s, " ", "")) {
	case "WGS84", "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return WGS84, nil
	}

	upper := strings.ToUpper(s)
	upper = strings.TrimPrefix(upper, "URN:OGC:DEF:CRS:")
	if code, ok := strings.CutPrefix(upper, "EPSG:"); ok {
		code = strings.TrimPrefix(code, ":") // urn form has an empty version
		return epsg(code, s)
	}
	if _, err := strconv.Atoi(s); err == nil {
		return epsg(s, s)
	}

	if strings.HasPrefix(s, "+") {
		return parseProj(s)
	}
	return "", errors.New(errors.ErrCodeInvalidCRS, "unrecognized coordinate reference system %q", s)
}

// MustParseCRS is like ParseCRS but panics on error. For constants in tests
// and examples.
func MustParseCRS(s string) CRS {
	c, err := ParseCRS(s)
	if err != nil {
		panic(err)
	}
	return c
}

func epsg(code, raw string) (CRS, error) {
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return "", errors.New(errors.ErrCodeInvalidCRS, "invalid EPSG code in %q", raw)
	}
	return CRS("EPSG:" + strconv.Itoa(n)), nil
}

func parseProj(s string) (CRS, error) {
	params := make(map[string]string)
	var keys []string
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimPrefix(tok, "+")
		if tok == "" || tok == "no_defs" || tok == "type=crs" {
			continue
		}
		k, v, _ := strings.Cut(tok, "=")
		k = strings.ToLower(k)
		if _, dup := params[k]; !dup {
			keys = append(keys, k)
		}
		params[k] = v
	}
	if params["proj"] == "" {
		return "", errors.New(errors.ErrCodeInvalidCRS, "PROJ string %q has no +proj parameter", s)
	}

	slices.Sort(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('+')
		b.WriteString(k)
		if v := params[k]; v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	canonical := b.String()
	sr, err := proj.Parse(canonical)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidCRS, err, "PROJ string %q", s)
	}
	name := strings.ToLower(sr.Name)
	if (name == "longlat" || name == "latlong") && len(keys) <= 2 {
		if strings.EqualFold(params["datum"]+params["ellps"], "WGS84") {
			return WGS84, nil
		}
	}
	return CRS(canonical), nil
}

// spatialReference parses a PROJ-defined CRS. It returns nil for EPSG codes
// and undeclared systems.
func (c CRS) spatialReference() *proj.SR {
	if c.IsZero() || c.EPSG() != 0 {
		return nil
	}
	sr, err := proj.Parse(string(c))
	if err != nil {
		return nil
	}
	return sr
}

// Equal reports whether c and o describe the same reference system. EPSG
// codes compare by code; PROJ definitions compare parameter by parameter.
func (c CRS) Equal(o CRS) bool {
	if c == o {
		return true
	}
	a, b := c.spatialReference(), o.spatialReference()
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b, projDigits)
}

// IsZero reports whether the reference system is undeclared.
func (c CRS) IsZero() bool { return c == "" }

// String returns the canonical identifier.
func (c CRS) String() string {
	if c == "" {
		return "(undeclared)"
	}
	return string(c)
}

// EPSG returns the numeric EPSG code, or 0 for PROJ-defined systems.
func (c CRS) EPSG() int {
	code, ok := strings.CutPrefix(string(c), "EPSG:")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(code)
	return n
}

// IsGeographic reports whether coordinates are longitude/latitude degrees.
// An undeclared CRS is not geographic.
func (c CRS) IsGeographic() bool {
	if code := c.EPSG(); code != 0 {
		return geographicEPSG[code]
	}
	p := c.projName()
	return p == "longlat" || p == "latlong"
}

// IsEqualArea reports whether equal-sized cells cover equal ground area.
func (c CRS) IsEqualArea() bool {
	if code := c.EPSG(); code != 0 {
		return equalAreaEPSG[code]
	}
	return slices.Contains(equalAreaProj, c.projName())
}

func (c CRS) projName() string {
	if sr := c.spatialReference(); sr != nil {
		return strings.ToLower(sr.Name)
	}
	return ""
}

// ResolveCRS settles the single reference system shared by both point sets.
//
// Undeclared sets adopt override. When override is set it must agree with
// every declared set. Declared sets must agree with each other. The result is
// always declared; if nothing declares a system, resolution fails.
func ResolveCRS(a, b, override CRS) (CRS, error) {
	resolved := override
	for i, c := range []CRS{a, b} {
		if c.IsZero() {
			continue
		}
		if resolved.IsZero() {
			resolved = c
			continue
		}
		if !c.Equal(resolved) {
			if !override.IsZero() {
				return "", errors.New(errors.ErrCodeInvalidCRS,
					"x%d declares %s but the override is %s", i+1, c, override)
			}
			return "", errors.New(errors.ErrCodeInvalidCRS,
				"x1 and x2 use different reference systems (%s vs %s)", a, b)
		}
	}
	if resolved.IsZero() {
		return "", errors.New(errors.ErrCodeInvalidCRS,
			"no coordinate reference system declared; pass one explicitly")
	}
	return resolved, nil
}

// RequireMatch fails with INVALID_CRS unless got describes the same system
// as want.
func RequireMatch(what string, want, got CRS) error {
	if !got.Equal(want) {
		return errors.New(errors.ErrCodeInvalidCRS, "%s uses %s, expected %s", what, got, want)
	}
	return nil
}
