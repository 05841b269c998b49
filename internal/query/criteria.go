package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrInvalidCriteria is returned for filter values of the wrong shape.
var ErrInvalidCriteria = errors.New("invalid criteria")

// Direction is a cardinal heading label.
type Direction string

// Directions and the course over ground window each one selects.
const (
	North Direction = "N" // [315, 360) and [0, 45)
	East  Direction = "E" // [45, 135)
	South Direction = "S" // [135, 225)
	West  Direction = "W" // [225, 315)
)

// Criteria is an immutable set of optional filters. Zero-valued fields do not
// filter.
type Criteria struct {
	MMSI        []uint32  // One identity (=) or several (IN).
	StartDate   string    // Inclusive range start, YYYY-MM-DD with optional time.
	EndDate     string    // Inclusive range end; a bare date covers the whole day.
	Polygon     string    // WKT polygon the position must lie in.
	MinVelocity *float64  // Minimum speed over ground, knots.
	MaxVelocity *float64  // Maximum speed over ground, knots.
	MinTurnRate *float64  // Minimum rate of turn, degrees/minute.
	MaxTurnRate *float64  // Maximum rate of turn, degrees/minute.
	Direction   Direction // Course over ground quadrant.
	Limit       int       // Max rows (0 = no limit).
}

// IsZero reports whether c has no filters.
func (c Criteria) IsZero() bool {
	return len(c.MMSI) == 0 && c.StartDate == "" && c.EndDate == "" && c.Polygon == "" &&
		c.MinVelocity == nil && c.MaxVelocity == nil && c.MinTurnRate == nil && c.MaxTurnRate == nil &&
		c.Direction == "" && c.Limit == 0
}

// Merge returns defaults with every field set in override replacing the
// default. Neither argument is modified.
func Merge(defaults, override Criteria) Criteria {
	out := defaults
	out.MMSI = slices.Clone(defaults.MMSI)
	if len(override.MMSI) > 0 {
		out.MMSI = slices.Clone(override.MMSI)
	}
	if override.StartDate != "" {
		out.StartDate = override.StartDate
	}
	if override.EndDate != "" {
		out.EndDate = override.EndDate
	}
	if override.Polygon != "" {
		out.Polygon = override.Polygon
	}
	if override.MinVelocity != nil {
		out.MinVelocity = override.MinVelocity
	}
	if override.MaxVelocity != nil {
		out.MaxVelocity = override.MaxVelocity
	}
	if override.MinTurnRate != nil {
		out.MinTurnRate = override.MinTurnRate
	}
	if override.MaxTurnRate != nil {
		out.MaxTurnRate = override.MaxTurnRate
	}
	if override.Direction != "" {
		out.Direction = override.Direction
	}
	if override.Limit != 0 {
		out.Limit = override.Limit
	}
	return out
}

// Validate checks the shape of every set filter.
func (c Criteria) Validate() error {
	if (c.StartDate == "") != (c.EndDate == "") {
		return fmt.Errorf("%w: start_date and end_date must be given together", ErrInvalidCriteria)
	}
	if c.StartDate != "" {
		start, err := parseBoundary(c.StartDate, false)
		if err != nil {
			return err
		}
		end, err := parseBoundary(c.EndDate, true)
		if err != nil {
			return err
		}
		if start > end {
			return fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidCriteria, c.StartDate, c.EndDate)
		}
	}
	if c.Polygon != "" {
		if _, err := parsePolygon(c.Polygon); err != nil {
			return err
		}
	}
	switch c.Direction {
	case "", North, East, South, West:
	default:
		return fmt.Errorf("%w: direction %q is not one of N, E, S, W", ErrInvalidCriteria, c.Direction)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidCriteria, c.Limit)
	}
	return nil
}

func parsePolygon(s string) (orb.Polygon, error) {
	poly, err := wkt.UnmarshalPolygon(s)
	if err != nil {
		return nil, fmt.Errorf("%w: polygon_bounds: %v", ErrInvalidCriteria, err)
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, fmt.Errorf("%w: polygon_bounds needs a closed ring of at least 3 points", ErrInvalidCriteria)
	}
	return poly, nil
}

// Criteria keys accepted by FromMap and FromValues.
const (
	KeyMMSI          = "mmsi"
	KeyStartDate     = "start_date"
	KeyEndDate       = "end_date"
	KeyPolygonBounds = "polygon_bounds"
	KeyMinVelocity   = "min_velocity"
	KeyMaxVelocity   = "max_velocity"
	KeyMinTurnRate   = "min_turn_rate"
	KeyMaxTurnRate   = "max_turn_rate"
	KeyDirection     = "direction"
	KeyLimit         = "limit"
)

// FromMap builds Criteria from loosely typed values, as decoded from JSON or
// YAML. mmsi accepts one integer or a list of integers; any other shape is
// rejected.
func FromMap(m map[string]any) (Criteria, error) {
	var c Criteria
	for k, v := range m {
		var err error
		switch k {
		case KeyMMSI:
			c.MMSI, err = mmsiValue(v)
		case KeyStartDate:
			c.StartDate, err = stringValue(k, v)
		case KeyEndDate:
			c.EndDate, err = stringValue(k, v)
		case KeyPolygonBounds:
			c.Polygon, err = stringValue(k, v)
		case KeyMinVelocity:
			c.MinVelocity, err = floatValue(k, v)
		case KeyMaxVelocity:
			c.MaxVelocity, err = floatValue(k, v)
		case KeyMinTurnRate:
			c.MinTurnRate, err = floatValue(k, v)
		case KeyMaxTurnRate:
			c.MaxTurnRate, err = floatValue(k, v)
		case KeyDirection:
			var s string
			s, err = stringValue(k, v)
			c.Direction = Direction(strings.ToUpper(s))
		case KeyLimit:
			var f *float64
			f, err = floatValue(k, v)
			if err == nil && *f != math.Trunc(*f) {
				err = fmt.Errorf("%w: limit %v is not an integer", ErrInvalidCriteria, *f)
			}
			if err == nil {
				c.Limit = int(*f)
			}
		default:
			err = fmt.Errorf("%w: unknown filter %q", ErrInvalidCriteria, k)
		}
		if err != nil {
			return Criteria{}, err
		}
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// FromValues builds Criteria from URL query parameters. mmsi may be repeated
// or comma separated. Keys other than the filter keys are ignored.
func FromValues(v url.Values) (Criteria, error) {
	var c Criteria
	for _, raw := range v[KeyMMSI] {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			id, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return Criteria{}, fmt.Errorf("%w: mmsi %q", ErrInvalidCriteria, s)
			}
			c.MMSI = append(c.MMSI, uint32(id))
		}
	}
	c.StartDate = v.Get(KeyStartDate)
	c.EndDate = v.Get(KeyEndDate)
	c.Polygon = v.Get(KeyPolygonBounds)
	c.Direction = Direction(strings.ToUpper(v.Get(KeyDirection)))

	for key, dst := range map[string]**float64{
		KeyMinVelocity: &c.MinVelocity,
		KeyMaxVelocity: &c.MaxVelocity,
		KeyMinTurnRate: &c.MinTurnRate,
		KeyMaxTurnRate: &c.MaxTurnRate,
	} {
		s := v.Get(key)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %s %q", ErrInvalidCriteria, key, s)
		}
		*dst = &f
	}
	if s := v.Get(KeyLimit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: limit %q", ErrInvalidCriteria, s)
		}
		c.Limit = n
	}

	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

func mmsiValue(v any) ([]uint32, error) {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty mmsi list", ErrInvalidCriteria)
		}
		out := make([]uint32, 0, len(list))
		for _, item := range list {
			id, err := identity(item)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	}

	switch x := v.(type) {
	case []int:
		return convertList(x)
	case []int64:
		return convertList(x)
	case []uint32:
		if len(x) == 0 {
			return nil, fmt.Errorf("%w: empty mmsi list", ErrInvalidCriteria)
		}
		return slices.Clone(x), nil
	}

	id, err := identity(v)
	if err != nil {
		return nil, err
	}
	return []uint32{id}, nil
}

func convertList[T int | int64](list []T) ([]uint32, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty mmsi list", ErrInvalidCriteria)
	}
	out := make([]uint32, 0, len(list))
	for _, item := range list {
		id, err := identity(item)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// identity accepts integral numbers in the uint32 range. Floats are accepted
// only when whole, since JSON decodes every number as float64.
func identity(v any) (uint32, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint32:
		return x, nil
	case uint64:
		if x > math.MaxUint32 {
			return 0, fmt.Errorf("%w: mmsi %d out of range", ErrInvalidCriteria, x)
		}
		return uint32(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: mmsi %v is not an integer", ErrInvalidCriteria, x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("%w: mmsi must be an integer or a list of integers, got %T", ErrInvalidCriteria, v)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: mmsi %d out of range", ErrInvalidCriteria, n)
	}
	return uint32(n), nil
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidCriteria, key, v)
	}
	return s, nil
}

func floatValue(key string, v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return nil, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidCriteria, key, v)
	}
	return &f, nil
}
