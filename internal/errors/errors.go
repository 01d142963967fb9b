// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCustomerNotFound is returned when a customer id does not exist.
type ErrCustomerNotFound struct {
	CustomerID int
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer with ID %d not found", e.CustomerID)
}

func NewCustomerNotFound(id int) error {
	return &ErrCustomerNotFound{CustomerID: id}
}

// ErrEmptyAudience aborts campaign creation when the predicate matches no
// customers. Nothing is persisted in that case.
type ErrEmptyAudience struct{}

func (e *ErrEmptyAudience) Error() string {
	return "no customers match the specified rules"
}

func NewEmptyAudience() error {
	return &ErrEmptyAudience{}
}

// ErrDuplicateCustomer reports a uniqueness violation on customer email
// during ingestion. Bulk ingestion skips the duplicate and proceeds.
type ErrDuplicateCustomer struct {
	Email string
}

func (e *ErrDuplicateCustomer) Error() string {
	return fmt.Sprintf("customer with email %s already exists", e.Email)
}

func NewDuplicateCustomer(email string) error {
	return &ErrDuplicateCustomer{Email: email}
}
