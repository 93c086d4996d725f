package session

import "errors"

var ErrMissingToken = errors.New("login response carried no access token")
