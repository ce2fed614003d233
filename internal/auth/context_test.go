package auth

import (
	"context"
	"testing"
)

func TestParentContextRoundTrip(t *testing.T) {
	ctx := WithParent(context.Background(), ParentContext{UserID: 3, SessionID: 9})

	pc, ok := ParentFromContext(ctx)
	if !ok {
		t.Fatal("expected parent context")
	}
	if pc.UserID != 3 || pc.SessionID != 9 {
		t.Errorf("unexpected parent context: %+v", pc)
	}
	if UserID(ctx) != 3 {
		t.Errorf("UserID = %d, want 3", UserID(ctx))
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := ParentFromContext(ctx); ok {
		t.Error("unexpected parent context on empty context")
	}
	if UserID(ctx) != 0 {
		t.Errorf("UserID = %d, want 0", UserID(ctx))
	}
	if _, ok := ChildFromContext(ctx); ok {
		t.Error("unexpected child context on empty context")
	}
}

func TestChildContextRoundTrip(t *testing.T) {
	ctx := WithChild(context.Background(), ChildContext{ChildID: 7, ParentID: 3})

	cc, ok := ChildFromContext(ctx)
	if !ok {
		t.Fatal("expected child context")
	}
	if cc.ChildID != 7 || cc.ParentID != 3 {
		t.Errorf("unexpected child context: %+v", cc)
	}
}
