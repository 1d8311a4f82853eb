package model

import (
	"time"
)

// AccountUser is a candidate account. IDNo (national ID number) is the
// unique login handle.
type AccountUser struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	OrgName      string    `json:"org_name"`
	IDNo         string    `json:"id_no"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Locked       bool      `json:"locked"`
	CreatedAt    time.Time `json:"created_at"`
}

// CandidateLoginRequest is the payload for candidate login.
type CandidateLoginRequest struct {
	IDNo     string `json:"id_no" binding:"required,min=6,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}
