package backup

// Link is the API's answer to an upload request.
type Link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

// APIError is the error body the disk API returns.
type APIError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Code        string `json:"error"`
}

func (e APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
