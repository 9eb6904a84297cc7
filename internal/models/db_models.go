package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserDB struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	ClerkID   string    `bun:"clerk_id,notnull,unique" json:"clerk_id"`
	Email     string    `bun:"email,notnull" json:"email"`
	FirstName string    `bun:"first_name" json:"first_name"`
	LastName  string    `bun:"last_name" json:"last_name"`
	Credits   int       `bun:"credits,notnull,default:0" json:"credits"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *UserDB) ToUser() *User {
	return &User{
		ID:        u.ID,
		ClerkID:   u.ClerkID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Credits:   u.Credits,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func UserFromDomain(u *User) *UserDB {
	return &UserDB{
		ID:        u.ID,
		ClerkID:   u.ClerkID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Credits:   u.Credits,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type TransactionDB struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID          string            `bun:"id,pk" json:"id"`
	UserID      string            `bun:"user_id,notnull" json:"user_id"`
	Kind        TransactionKind   `bun:"kind,notnull" json:"kind"`
	Amount      int               `bun:"amount,notnull" json:"amount"`
	ExternalRef string            `bun:"external_ref" json:"external_ref"`
	Metadata    map[string]string `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt   time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (t *TransactionDB) ToTransaction() *Transaction {
	return &Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		ExternalRef: t.ExternalRef,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
}

type GenerationDB struct {
	bun.BaseModel `bun:"table:generations,alias:g"`

	ID          string           `bun:"id,pk" json:"id"`
	UserID      string           `bun:"user_id,notnull" json:"user_id"`
	Status      GenerationStatus `bun:"status,notnull,default:'starting'" json:"status"`
	RoomType    string           `bun:"room_type,notnull" json:"room_type"`
	Theme       string           `bun:"theme,notnull" json:"theme"`
	Quality     string           `bun:"quality,notnull" json:"quality"`
	Prompt      string           `bun:"prompt" json:"prompt"`
	OutputURLs  []string         `bun:"output_urls,type:jsonb" json:"output_urls"`
	Error       string           `bun:"error" json:"error"`
	SourcePath  string           `bun:"source_path" json:"source_path"`
	CreatedAt   time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	CompletedAt *time.Time       `bun:"completed_at" json:"completed_at"`
}

func (g *GenerationDB) ToGeneration() *Generation {
	return &Generation{
		ID:          g.ID,
		UserID:      g.UserID,
		Status:      g.Status,
		RoomType:    g.RoomType,
		Theme:       g.Theme,
		Quality:     g.Quality,
		Prompt:      g.Prompt,
		OutputURLs:  g.OutputURLs,
		Error:       g.Error,
		SourcePath:  g.SourcePath,
		CreatedAt:   g.CreatedAt,
		CompletedAt: g.CompletedAt,
	}
}

func GenerationFromDomain(g *Generation) *GenerationDB {
	return &GenerationDB{
		ID:          g.ID,
		UserID:      g.UserID,
		Status:      g.Status,
		RoomType:    g.RoomType,
		Theme:       g.Theme,
		Quality:     g.Quality,
		Prompt:      g.Prompt,
		OutputURLs:  g.OutputURLs,
		Error:       g.Error,
		SourcePath:  g.SourcePath,
		CreatedAt:   g.CreatedAt,
		CompletedAt: g.CompletedAt,
	}
}
