package correlatives

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Role selects which sub-sequence of a correlative an entry consumes.
type Role string

const (
	RoleOpening  Role = "A"
	RoleMovement Role = "M"
	RoleClosing  Role = "C"
)

// MaxNumber is the largest number a 9-digit document code can carry.
const MaxNumber int64 = 999_999_999

// ParseRole validates a role letter.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleOpening, RoleMovement, RoleClosing:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidRole, s)
	}
}

// Correlative holds the three document counters of a book within a tax period.
type Correlative struct {
	ID     int64
	Book   string
	Period string
	LastA  int64
	LastM  int64
	LastC  int64
	Closed *time.Time
}

// IsClosed reports whether the numbering stopped accepting allocations.
func (c Correlative) IsClosed() bool {
	return c.Closed != nil
}

// Last returns the last number allocated for role.
func (c Correlative) Last(role Role) (int64, error) {
	p, err := c.counter(role)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Next returns a copy of c with the role counter advanced by one, and the new value.
func (c Correlative) Next(role Role) (Correlative, int64, error) {
	p, err := c.counter(role)
	if err != nil {
		return Correlative{}, 0, err
	}
	if *p >= MaxNumber {
		return Correlative{}, 0, shared.ErrCorrelativeExhausted
	}
	*p++
	return c, *p, nil
}

func (c *Correlative) counter(role Role) (*int64, error) {
	switch role {
	case RoleOpening:
		return &c.LastA, nil
	case RoleMovement:
		return &c.LastM, nil
	case RoleClosing:
		return &c.LastC, nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidRole, string(role))
	}
}

// Format renders the document code, e.g. M000000002.
func Format(role Role, number int64) string {
	return fmt.Sprintf("%s%09d", role, number)
}
