package usecase

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindInvalidQuantity
	KindCategoryNotFound
	KindPeerUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindInvalidQuantity:
		return "invalid_quantity"
	case KindCategoryNotFound:
		return "category_not_found"
	case KindPeerUnreachable:
		return "peer_unreachable"
	default:
		return "internal"
	}
}

// HTTPステータスへの対応
func (k ErrorKind) Status() int {
	switch k {
	case KindInvalidInput, KindInvalidQuantity, KindCategoryNotFound:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPeerUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Errorはusecaseが返すエラー。
// Categoriesはカテゴリ不正のとき、Peersは通知に失敗したサービス名。
type Error struct {
	Kind       ErrorKind
	Message    string
	Categories []string
	Peers      []string
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}

func IsKind(err error, kind ErrorKind) bool {
	ue, ok := AsError(err)
	return ok && ue.Kind == kind
}
