package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/supplychain_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyCallerAddress = appctx.ContextKeyCallerAddress
	ContextKeyCallerName    = appctx.ContextKeyCallerName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetCallerAddressFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCallerAddress)
}

func GetCallerNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCallerName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetCallerAddressInContext(ctx context.Context, address string) context.Context {
	return appctx.Set(ctx, ContextKeyCallerAddress, address)
}

func SetCallerNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyCallerName, name)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
