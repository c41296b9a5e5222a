package domain

type IncidentCounts struct {
	Crimes    int64 `json:"crimes"`
	Sos       int64 `json:"sos"`
	LostFound int64 `json:"lostfound"`
}
