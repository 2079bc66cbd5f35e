// Package keypoint converts XML keypoint annotations into the 17-point
// COCO ordering used by MoveNet-style pose models.
package keypoint

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument means the annotation document is not the expected
	// image -> points structure.
	ErrMalformedDocument = errors.New("malformed annotation document")

	// ErrIndexOutOfRange means an image carries fewer points than the source schema.
	ErrIndexOutOfRange = errors.New("keypoint index out of range")

	// ErrValueParse means a "x,y" point string did not hold two numbers.
	ErrValueParse = errors.New("invalid point value")
)

const (
	// SourceLandmarks is the number of landmarks in the annotation schema.
	SourceLandmarks = 18

	// TargetLandmarks is the number of landmarks in the model output schema.
	TargetLandmarks = 17

	// NeckIndex is the source landmark with no target slot.
	NeckIndex = 1

	// GroundTruthConfidence is attached to every annotation-sourced keypoint.
	GroundTruthConfidence = 1.0
)

// sourceToTarget maps target position i to the source landmark it takes.
//
//	 0 nose            <- 0
//	 1 left eye        <- 14
//	 2 right eye       <- 15
//	 3 left ear        <- 16
//	 4 right ear       <- 17
//	 5 left shoulder   <- 5
//	 6 right shoulder  <- 2
//	 7 left elbow      <- 6
//	 8 right elbow     <- 3
//	 9 left wrist      <- 7
//	10 right wrist     <- 4
//	11 left hip        <- 11
//	12 right hip       <- 8
//	13 left knee       <- 12
//	14 right knee      <- 9
//	15 left ankle      <- 13
//	16 right ankle     <- 10
var sourceToTarget = [TargetLandmarks]int{0, 14, 15, 16, 17, 5, 2, 6, 3, 7, 4, 11, 8, 12, 9, 13, 10}

// Mapping returns a copy of the source-to-target index table.
func Mapping() [TargetLandmarks]int {
	return sourceToTarget
}

// Point is a raw (x, y) landmark as read from the annotation document.
type Point struct {
	X float64
	Y float64
}

// Keypoint is a target landmark with its confidence score.
// It serializes as the triple [x, y, confidence].
type Keypoint struct {
	X          float64
	Y          float64
	Confidence float64
}

// MarshalJSON encodes the keypoint as [x, y, confidence].
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{k.X, k.Y, k.Confidence})
}

// UnmarshalJSON decodes a [x, y, confidence] triple.
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var triple []float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if len(triple) != 3 {
		return fmt.Errorf("keypoint: expected 3 values, got %d", len(triple))
	}
	k.X, k.Y, k.Confidence = triple[0], triple[1], triple[2]
	return nil
}

// Image is one annotated image in document order.
type Image struct {
	Name   string
	Points []Point
}

// Annotations maps an image name to its 17 reordered keypoints.
type Annotations map[string][]Keypoint

// ReorderToTarget picks the source points named by the mapping table and
// appends a confidence of 1.0 to each. Points past index 17 are ignored.
func ReorderToTarget(points []Point) ([]Keypoint, error) {
	if len(points) < SourceLandmarks {
		return nil, fmt.Errorf("%w: need %d points, got %d", ErrIndexOutOfRange, SourceLandmarks, len(points))
	}

	out := make([]Keypoint, TargetLandmarks)
	for i, src := range sourceToTarget {
		p := points[src]
		out[i] = Keypoint{X: p.X, Y: p.Y, Confidence: GroundTruthConfidence}
	}
	return out, nil
}
