package service

import (
	"context"
	"fmt"

	"taskflow/internal/config"
	"taskflow/internal/model"
	"taskflow/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// loadActor resolves the authenticated caller. A caller whose account was
// deleted after the token was issued is unauthenticated.
func loadActor(ctx context.Context, users repository.IUserRepository, id primitive.ObjectID) (*model.User, error) {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "User not found"}
	}
	return user, nil
}

func normalizePage(p model.Pagination) model.Pagination {
	return p.Normalize(config.DefaultPageSize, config.MaxPageSize)
}
