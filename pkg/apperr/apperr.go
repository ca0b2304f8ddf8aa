// Package apperr regroupe la taxonomie d'erreurs partagée par les services.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
	ErrConnection = errors.New("broker unreachable")
	ErrProjection = errors.New("projection failed")
)

// HTTPStatus traduit une erreur en code HTTP.
// NotFound couvre aussi "pas à toi" : on ne révèle pas l'existence d'une ressource.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage renvoie un message sans détail interne, sauf pour les erreurs de validation
// que l'utilisateur peut corriger.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrConnection):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}
