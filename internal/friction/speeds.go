// Package friction builds the per-pixel travel-cost surface: walking speeds
// from land cover, road overlays from the regional dataset waterfall, and a
// terrain slope penalty.
package friction

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed speeds.yaml
var speedsYAML []byte

// classSpeeds maps land-cover class codes to off-road walking speed in km/h.
var classSpeeds = mustLoadSpeeds()

func mustLoadSpeeds() map[int]float64 {
	var m map[int]float64
	if err := yaml.Unmarshal(speedsYAML, &m); err != nil {
		panic(fmt.Sprintf("friction: embedded speed table: %v", err))
	}
	return m
}

// SpeedForClass returns the walking speed for a land-cover class in km/h.
// Unknown classes and impassable classes report ok=false.
func SpeedForClass(class int) (kmh float64, ok bool) {
	kmh, ok = classSpeeds[class]
	if !ok || kmh <= 0 {
		return 0, false
	}
	return kmh, true
}

// FrictionFromKmh converts a travel speed in km/h to friction in minutes
// per meter.
func FrictionFromKmh(kmh float64) float64 {
	return 60 / (kmh * 1000)
}
