package controller

import "context"

type contextKey int

const (
	roomIDCtxKey contextKey = iota
	userIDCtxKey
	userNameCtxKey
)

func (c controller) getRoomIDFromCtx(ctx context.Context) string {
	roomID, _ := ctx.Value(roomIDCtxKey).(string)
	return roomID
}

func (c controller) getUserIDFromCtx(ctx context.Context) string {
	userID, _ := ctx.Value(userIDCtxKey).(string)
	return userID
}

func (c controller) getUserNameFromCtx(ctx context.Context) string {
	userName, _ := ctx.Value(userNameCtxKey).(string)
	return userName
}
