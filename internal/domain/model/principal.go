package model

// Principal is the authenticated subscriber identity established by the
// session layer and passed explicitly into use cases.
type Principal struct {
	AccountID string
	Email     string
}
