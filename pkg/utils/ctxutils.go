package utils

import (
	"context"

	"case-system/pkg/contextkeys"
	apperrors "case-system/pkg/errors"
)

// GetUserIDFromCtx достаёт идентификатор пользователя, положенный auth-middleware.
func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	switch v := ctx.Value(contextkeys.UserIDKey).(type) {
	case uint64:
		if v != 0 {
			return v, nil
		}
	case int:
		if v > 0 {
			return uint64(v), nil
		}
	}
	return 0, apperrors.ErrUserIDNotFoundInContext
}
