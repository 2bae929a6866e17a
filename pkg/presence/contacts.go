package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arzzra/ims_phone/pkg/xdm"
)

// ErrXDMRequestFailed XDMS ответил ошибкой
var ErrXDMRequestFailed = errors.New("xdm request failed")

// ContactAction изменение отношения к контакту в списке контактов
type ContactAction int

const (
	// ContactGrant контакт может видеть presence
	ContactGrant ContactAction = iota
	// ContactRevoke разрешение отозвано
	ContactRevoke
	// ContactBlock контакт заблокирован
	ContactBlock
	// ContactUnblock блокировка снята
	ContactUnblock
)

func (a ContactAction) String() string {
	switch a {
	case ContactGrant:
		return "grant"
	case ContactRevoke:
		return "revoke"
	case ContactBlock:
		return "block"
	case ContactUnblock:
		return "unblock"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

type xdmOp struct {
	name string
	call func(context.Context, string) (*xdm.Response, error)
	// missingOK 404 на удаление отсутствующей записи не ошибка
	missingOK bool
}

func (s *Service) contactOps(action ContactAction) ([]xdmOp, error) {
	x := s.xdm
	switch action {
	case ContactGrant:
		return []xdmOp{
			{name: "add granted", call: x.AddContactToGrantedList},
			{name: "remove revoked", call: x.RemoveContactFromRevokedList, missingOK: true},
		}, nil
	case ContactRevoke:
		return []xdmOp{
			{name: "remove granted", call: x.RemoveContactFromGrantedList, missingOK: true},
			{name: "add revoked", call: x.AddContactToRevokedList},
		}, nil
	case ContactBlock:
		return []xdmOp{
			{name: "add blocked", call: x.AddContactToBlockedList},
			{name: "remove granted", call: x.RemoveContactFromGrantedList, missingOK: true},
		}, nil
	case ContactUnblock:
		return []xdmOp{
			{name: "remove blocked", call: x.RemoveContactFromBlockedList, missingOK: true},
		}, nil
	}
	return nil, fmt.Errorf("unknown contact action %d", int(action))
}

// HandleContactChange переносит изменение списка контактов на XDMS.
// Операции выполняются по порядку, первая неуспешная прерывает цепочку.
func (s *Service) HandleContactChange(ctx context.Context, contact string, action ContactAction) error {
	if s.xdm == nil {
		return fmt.Errorf("%w: xdm not configured", ErrXDMRequestFailed)
	}
	ops, err := s.contactOps(action)
	if err != nil {
		return err
	}

	logger := s.logger.With(slog.String("contact", contact), slog.String("action", action.String()))
	for _, op := range ops {
		resp, err := op.call(ctx, contact)
		if err != nil {
			logger.Error("xdm request error", slog.String("op", op.name), slog.Any("error", err))
			return fmt.Errorf("%s: %w", op.name, err)
		}
		if resp.IsSuccessful() || (op.missingOK && resp.IsNotFound()) {
			continue
		}
		status := statusOf(resp)
		logger.Warn("xdm request rejected", slog.String("op", op.name), slog.Int("status", status))
		return fmt.Errorf("%w: %s: status %d", ErrXDMRequestFailed, op.name, status)
	}
	logger.Info("contact list updated")
	return nil
}

func statusOf(r *xdm.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}
