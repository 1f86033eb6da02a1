package models

// ServiceResponse is the envelope of every api response, Data is null when Error is set
type ServiceResponse[T any] struct {
	Data  *T     `json:"data"`
	Error string `json:"error"`
}

func GetServiceResponseOk[T any](data *T) ServiceResponse[T] {
	return ServiceResponse[T]{
		Data:  data,
		Error: "",
	}
}

// GetServiceResponseError is typed like the success response of the same endpoint
func GetServiceResponseError[T any](errorMessage string) ServiceResponse[T] {
	return ServiceResponse[T]{
		Data:  nil,
		Error: errorMessage,
	}
}
