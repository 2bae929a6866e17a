package presence

import (
	"context"

	"github.com/arzzra/ims_phone/pkg/xdm"
)

//go:generate mockgen -source=xdm.go -destination=mock_xdm_test.go -package=presence_test

// XDM операции со списками контактов на XDMS (реализуется xdm.Client)
type XDM interface {
	AddContactToGrantedList(ctx context.Context, contact string) (*xdm.Response, error)
	RemoveContactFromGrantedList(ctx context.Context, contact string) (*xdm.Response, error)
	AddContactToBlockedList(ctx context.Context, contact string) (*xdm.Response, error)
	RemoveContactFromBlockedList(ctx context.Context, contact string) (*xdm.Response, error)
	AddContactToRevokedList(ctx context.Context, contact string) (*xdm.Response, error)
	RemoveContactFromRevokedList(ctx context.Context, contact string) (*xdm.Response, error)
	UploadEndUserIcon(ctx context.Context, icon xdm.Icon) (*xdm.Response, error)
	DeleteEndUserIcon(ctx context.Context) (*xdm.Response, error)
}

var _ XDM = (*xdm.Client)(nil)
