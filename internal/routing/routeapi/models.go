package routeapi

// routeRequest represents the route engine search request body.
type routeRequest struct {
	StartLat      float64 `json:"start_lat"`
	StartLon      float64 `json:"start_lon"`
	EndLat        float64 `json:"end_lat"`
	EndLon        float64 `json:"end_lon"`
	RouteTypes    string  `json:"route_types,omitempty"`
	DepartureTime string  `json:"departure_time,omitempty"`
}

// routeResponse represents the route engine search response. The engine
// returns each alternative in its own named slot; optimal_route duplicates
// one of the other slots.
type routeResponse struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	FastestRoute    *routeInfo `json:"fastest_route"`
	ShortestRoute   *routeInfo `json:"shortest_route"`
	HealthiestRoute *routeInfo `json:"healthiest_route"`
	OptimalRoute    *routeInfo `json:"optimal_route"`
	CalculationTime string     `json:"calculation_time"`
	TotalRoutes     int        `json:"total_routes"`
}

// routeInfo represents a single computed route.
type routeInfo struct {
	RouteID           string             `json:"route_id"`
	Type              string             `json:"type"`
	TravelTimeMinutes int                `json:"travel_time_minutes"`
	DistanceKM        float64            `json:"distance_km"`
	AverageAQI        float64            `json:"average_aqi"`
	AirQualityScore   float64            `json:"air_quality_score"`
	PollutionExposure map[string]float64 `json:"pollution_exposure"`
	Waypoints         []coordinate       `json:"waypoints"`
	Segments          []routeSegment     `json:"segments"`
	Polyline          string             `json:"polyline"`
}

// coordinate is a latitude/longitude pair.
type coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// routeSegment represents a leg of a route with its air quality reading.
type routeSegment struct {
	Start        coordinate     `json:"start"`
	End          coordinate     `json:"end"`
	Distance     float64        `json:"distance"`
	Duration     int            `json:"duration"`
	AirQuality   airQualityData `json:"air_quality"`
	Instructions string         `json:"instructions"`
}

// airQualityData is the per-segment air quality payload.
type airQualityData struct {
	PM25            float64 `json:"pm25"`
	PM10            float64 `json:"pm10"`
	O3              float64 `json:"o3"`
	NO2             float64 `json:"no2"`
	AirQualityIndex int     `json:"air_quality_index"`
	Grade           string  `json:"grade"`
	Confidence      float64 `json:"confidence"`
}

// errorResponse represents an error payload from the route engine.
type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}
