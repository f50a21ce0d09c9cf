package sems

import (
	"errors"
	"fmt"
)

// ErrorKind clasifica la falla de una llamada al portal.
type ErrorKind int

const (
	// KindUnreachable: timeout, DNS o conexión rechazada; no hubo respuesta.
	KindUnreachable ErrorKind = iota + 1
	// KindRejected: el portal respondió y rechazó la solicitud.
	KindRejected
	// KindMalformedRequest: la solicitud no se pudo construir.
	KindMalformedRequest
	// KindMalformedResponse: el portal respondió algo que no se puede interpretar.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindMalformedRequest:
		return "malformed_request"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error es el resultado etiquetado de una llamada fallida.
// Status y Body solo se completan cuando Kind es KindRejected.
type Error struct {
	Kind   ErrorKind
	Op     string
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRejected && e.Status != 0:
		return fmt.Sprintf("sems %s: %s (status %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("sems %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("sems %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extrae el *Error de una cadena de errores.
func AsError(err error) (*Error, bool) {
	var semsErr *Error
	if errors.As(err, &semsErr) {
		return semsErr, true
	}
	return nil, false
}

// IsKind reporta si err contiene un *Error del tipo indicado.
func IsKind(err error, kind ErrorKind) bool {
	semsErr, ok := AsError(err)
	return ok && semsErr.Kind == kind
}
