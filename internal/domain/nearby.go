package domain

const DefaultNearbyRadiusMeters = 5000

type NearbyRequest struct {
	Lat          Number `json:"lat"`
	Lng          Number `json:"lng"`
	RadiusMeters Number `json:"distance"`
}

type NearbyIncident struct {
	*Incident
	DistanceMeters float64 `json:"distance_m"`
}

type NearbyResponse struct {
	Incidents []NearbyIncident `json:"incidents"`
}
