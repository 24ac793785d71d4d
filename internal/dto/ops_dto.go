package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	DB             string `json:"db"`
	Encryption     string `json:"encryption"`
	ConsentVersion string `json:"consent_version"`
}

type JobResponse struct {
	Job    string      `json:"job"`
	Result interface{} `json:"result"`
}

type ErasureRequestBody struct {
	UserID string `json:"user_id"`
}

type ErasureResponse struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

type RotateKeyRequest struct {
	OldKey string `json:"old_key"`
	NewKey string `json:"new_key"`
}
