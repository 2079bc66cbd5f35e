package keypoint

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	imageElement  = "image"
	pointsElement = "points"
	nameAttr      = "name"
	pointsAttr    = "points"
)

// DecodeImages reads every <image> element of an annotation document, in
// document order, with the points of the <points> elements nested anywhere
// below it.
func DecodeImages(r io.Reader) ([]Image, error) {
	raws, err := decodeRaw(r)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(raws))
	for _, ri := range raws {
		img, err := ri.parse()
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// decodeRaw reads the whole document before returning so a syntax error late
// in the file is reported ahead of any per-image problem.
func decodeRaw(r io.Reader) ([]rawImage, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		raws    []rawImage
		current *rawImage
		depth   int // nesting below the current <image>
		sawRoot bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if current != nil {
				depth++
				if t.Name.Local == pointsElement {
					// a missing attribute fails later as an unparsable point
					raw, _ := attr(t, pointsAttr)
					current.points = append(current.points, raw)
				}
				continue
			}
			if t.Name.Local == imageElement {
				name, ok := attr(t, nameAttr)
				if !ok {
					return nil, fmt.Errorf("%w: <image> at offset %d has no name", ErrMalformedDocument, dec.InputOffset())
				}
				current = &rawImage{name: name}
				depth = 0
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			raws = append(raws, *current)
			current = nil
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	return raws, nil
}

type rawImage struct {
	name   string
	points []string
}

func (ri rawImage) parse() (Image, error) {
	img := Image{Name: ri.name, Points: make([]Point, 0, len(ri.points))}
	for _, raw := range ri.points {
		p, err := ParsePoint(raw)
		if err != nil {
			return Image{}, fmt.Errorf("image %q: %w", ri.name, err)
		}
		img.Points = append(img.Points, p)
	}
	return img, nil
}

// ParsePoint parses a "x,y" literal. Both values must be finite decimal
// numbers.
func ParsePoint(raw string) (Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: %q: want 2 values, got %d", ErrValueParse, raw, len(parts))
	}

	x, err := parseCoord(parts[0])
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrValueParse, raw, err)
	}
	y, err := parseCoord(parts[1])
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrValueParse, raw, err)
	}
	return Point{X: x, Y: y}, nil
}

func parseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX") {
		return 0, fmt.Errorf("not a decimal number: %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
