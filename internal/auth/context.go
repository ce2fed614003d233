package auth

import "context"

type parentKey struct{}
type childKey struct{}

// ParentContext identifies the authenticated parent on a request.
type ParentContext struct {
	UserID    int64
	SessionID int64
}

// ChildContext identifies the paired child acting on a device request.
type ChildContext struct {
	ChildID  int64
	ParentID int64
}

func WithParent(ctx context.Context, pc ParentContext) context.Context {
	return context.WithValue(ctx, parentKey{}, pc)
}

func ParentFromContext(ctx context.Context) (ParentContext, bool) {
	pc, ok := ctx.Value(parentKey{}).(ParentContext)
	return pc, ok
}

func UserID(ctx context.Context) int64 {
	pc, ok := ParentFromContext(ctx)
	if !ok {
		return 0
	}
	return pc.UserID
}

func WithChild(ctx context.Context, cc ChildContext) context.Context {
	return context.WithValue(ctx, childKey{}, cc)
}

func ChildFromContext(ctx context.Context) (ChildContext, bool) {
	cc, ok := ctx.Value(childKey{}).(ChildContext)
	return cc, ok
}
