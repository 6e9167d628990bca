package ws

import (
	"context"

	"collaborative-document-editor/internal/domain"
)

// Action is something a user can attempt on a document.
type Action int

const (
	// ActionConnect covers connecting to the room and reading content.
	ActionConnect Action = iota
	ActionEdit
	ActionComment
	// ActionManage covers ownership-only operations such as toggling
	// visibility, sharing and deleting.
	ActionManage
)

// PermissionGate decides whether a connection or action may proceed. It is a
// pure decision function over gateway data and fails closed: any lookup
// error or missing document denies.
type PermissionGate struct {
	gateway Gateway
}

func NewPermissionGate(gateway Gateway) *PermissionGate {
	return &PermissionGate{gateway: gateway}
}

func (g *PermissionGate) Authorize(ctx context.Context, docID, userID uint64, action Action) bool {
	doc, err := g.gateway.LoadDocument(ctx, docID)
	if err != nil {
		return false
	}

	if doc.OwnerID == userID {
		return true
	}

	// public documents grant read access to anyone, but never
	// ownership-only actions
	if doc.IsPublic && action == ActionConnect {
		return true
	}

	role, err := g.gateway.CheckGrant(ctx, docID, userID)
	if err != nil {
		return false
	}

	switch role {
	case domain.RoleViewer:
		return action == ActionConnect
	case domain.RoleEditor:
		return action == ActionConnect || action == ActionEdit || action == ActionComment
	}

	return false
}
