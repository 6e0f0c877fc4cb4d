package models

// Location is a WGS84 coordinate in decimal degrees
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}
