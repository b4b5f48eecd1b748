package model

import oerrors "github.com/porthorian/modeltest/pkg/errors"

var (
	ErrRealmNotFound     = oerrors.New(oerrors.CodeNotFound, "model: realm not found", nil)
	ErrComponentNotFound = oerrors.New(oerrors.CodeNotFound, "model: component not found", nil)
	ErrUserNotFound      = oerrors.New(oerrors.CodeNotFound, "model: user not found", nil)
	ErrRealmExists       = oerrors.New(oerrors.CodeConflict, "model: realm name already exists", nil)
	ErrUserExists        = oerrors.New(oerrors.CodeConflict, "model: username already exists in realm", nil)
	ErrInvalidRealm      = oerrors.New(oerrors.CodeParameterInvalid, "model: realm name is required", nil)
	ErrInvalidUser       = oerrors.New(oerrors.CodeParameterInvalid, "model: realm id and username are required", nil)
	ErrInvalidComponent  = oerrors.New(oerrors.CodeParameterInvalid, "model: component provider id and type are required", nil)
)
