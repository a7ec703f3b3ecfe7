package models

// Reward is one slot of a user's weekly rewards as rendered on the wire.
// Times use the YYYY-MM-DDTHH:MM:SSZ layout.
type Reward struct {
	AvailableAt string  `json:"availableAt"`
	RedeemedAt  *string `json:"redeemedAt"` // null until redeemed
	ExpiresAt   string  `json:"expiresAt"`
}

// WeeklyRewards is the payload returned when listing a week.
type WeeklyRewards []Reward

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// ErrorBody carries a human-readable error message.
type ErrorBody struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
