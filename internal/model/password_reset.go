package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// PasswordResetTTL is how long a reset code and link stay valid.
	PasswordResetTTL = 15 * time.Minute
	// MaxResetCodeAttempts wrong codes invalidate a reset.
	MaxResetCodeAttempts = 5
)

// PasswordReset stores only hashes of the emailed code and link token.
type PasswordReset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	CodeHash  string             `bson:"codeHash" json:"-"`
	TokenHash string             `bson:"tokenHash" json:"-"`
	Attempts  int                `bson:"attempts" json:"attempts"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	Used      bool               `bson:"used" json:"used"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p *PasswordReset) GetID() primitive.ObjectID   { return p.ID }
func (p *PasswordReset) SetID(id primitive.ObjectID) { p.ID = id }

func (p *PasswordReset) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
