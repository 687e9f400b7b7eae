package models

import "sosseats/src/types"

type User struct {
	ID            string  `gorm:"primarykey;type:uuid" json:"id"`
	Email         string  `json:"email,omitempty"`
	DisplayName   string  `json:"display_name,omitempty"`
	Username      string  `json:"username,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`

	types.Timestamps
}

func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
