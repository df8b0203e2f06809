// Package demo holds the fixed offline accounts used to show the client
// without a backend. Only binaries built with the demo tag link it.
package demo

import (
	"crypto/subtle"
	"time"

	"github.com/utafrali/fieldsales/internal/client"
	"github.com/utafrali/fieldsales/internal/domain"
)

// Account is one offline login.
type Account struct {
	Phone    string
	Password string
	User     domain.User
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Accounts is the fixed demo table, one account per role.
var Accounts = []Account{
	{
		Phone:    "0700000001",
		Password: "admin123",
		User:     domain.User{ID: 1, Phone: "0700000001", Role: domain.RoleAdmin, Name: "Demo Admin", IsActive: true, CreatedAt: epoch},
	},
	{
		Phone:    "0700000002",
		Password: "manager123",
		User:     domain.User{ID: 2, Phone: "0700000002", Role: domain.RoleManager, Name: "Demo Manager", IsActive: true, CreatedAt: epoch},
	},
	{
		Phone:    "0700000003",
		Password: "agent123",
		User:     domain.User{ID: 3, Phone: "0700000003", Role: domain.RoleAgent, Name: "Demo Agent", IsActive: true, CreatedAt: epoch, ManagerID: ptr(2)},
	},
}

// Strategy authenticates against Accounts.
type Strategy struct{}

// New returns the demo strategy.
func New() Strategy { return Strategy{} }

// Login matches phone and password against the demo table.
func (Strategy) Login(phone, password string) (*client.LoginResult, bool) {
	for _, a := range Accounts {
		if a.Phone != phone {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(a.Password), []byte(password)) != 1 {
			return nil, false
		}
		u := a.User
		if a.User.ManagerID != nil {
			u.ManagerID = ptr(*a.User.ManagerID)
		}
		return &client.LoginResult{Token: "demo-" + string(u.Role), User: &u}, true
	}
	return nil, false
}

func ptr(v int64) *int64 { return &v }
