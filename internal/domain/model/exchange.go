package model

// Exchange is a single question sent upstream and the answer that came back.
// Neither field is transformed on its way through the service.
type Exchange struct {
	Input  string
	Answer string
}
