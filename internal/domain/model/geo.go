package model

import "math"

// Coordinates carries a geographic position with flight vector data.
type Coordinates struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeM  float64 `json:"altitude_m"`
	HeadingDeg float32 `json:"heading_deg"`
	SpeedMPS   float32 `json:"speed_mps"`
}

const earthRadiusKM = 6371.0

// DistanceToKM returns the great-circle distance to other (haversine).
func (c Coordinates) DistanceToKM(other Coordinates) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - c.Latitude) * math.Pi / 180
	dLon := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return earthRadiusKM * 2 * math.Asin(math.Sqrt(a))
}
